package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/notify-gateway/internal/domain"
)

const (
	DefaultTwilioBaseURL = "https://api.twilio.com"
	twilioAPIVersion     = "2010-04-01"
	defaultHTTPTimeout   = 10 * time.Second
)

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	BaseURL    string
}

type twilioResource struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

type twilioErrorBody struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

// TwilioClient talks to the Messages and Calls resources of the Twilio REST API.
type TwilioClient struct {
	client     *resty.Client
	accountSID string
	baseURL    string
}

func NewTwilioClient(cfg TwilioConfig) (*TwilioClient, error) {
	client := resty.New()
	client.SetTimeout(defaultHTTPTimeout)
	client.SetRetryCount(0)

	return NewTwilioClientWithClient(cfg, client)
}

func NewTwilioClientWithClient(cfg TwilioConfig, client *resty.Client) (*TwilioClient, error) {
	sid := strings.TrimSpace(cfg.AccountSID)
	if sid == "" {
		return nil, fmt.Errorf("twilio account sid is required")
	}
	if strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, fmt.Errorf("twilio auth token is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultTwilioBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid twilio base url: %w", err)
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultHTTPTimeout)
	}
	client.SetRetryCount(0)
	client.SetBasicAuth(sid, cfg.AuthToken)

	return &TwilioClient{
		client:     client,
		accountSID: sid,
		baseURL:    baseURL,
	}, nil
}

// SendMessage creates an SMS or WhatsApp message. WhatsApp numbers carry the
// "whatsapp:" scheme in both from and to.
func (c *TwilioClient) SendMessage(ctx context.Context, from, to, body string) (*domain.SendResult, error) {
	return c.create(ctx, "Messages.json", map[string]string{
		"From": from,
		"To":   to,
		"Body": body,
	})
}

// CreateCall places a voice call whose TwiML is served from callbackURL.
func (c *TwilioClient) CreateCall(ctx context.Context, from, to, callbackURL string) (*domain.SendResult, error) {
	return c.create(ctx, "Calls.json", map[string]string{
		"From": from,
		"To":   to,
		"Url":  callbackURL,
	})
}

func (c *TwilioClient) create(ctx context.Context, resource string, form map[string]string) (*domain.SendResult, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("twilio client is not initialized")
	}
	for _, field := range []string{"From", "To"} {
		if strings.TrimSpace(form[field]) == "" {
			return nil, fmt.Errorf("%w: twilio %s is required", domain.ErrValidation, strings.ToLower(field))
		}
	}

	var created twilioResource
	var failure twilioErrorBody
	response, err := c.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&created).
		SetError(&failure).
		Post(fmt.Sprintf("%s/%s/Accounts/%s/%s", c.baseURL, twilioAPIVersion, c.accountSID, resource))
	if err != nil {
		return nil, requestError("twilio", err)
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		message := failure.Message
		if message == "" {
			message = response.String()
		}
		return nil, statusError("twilio", statusCode, failure.Code, message)
	}

	if created.ErrorCode != nil && *created.ErrorCode != 0 {
		return nil, &ProviderError{
			Provider: "twilio",
			Code:     *created.ErrorCode,
			Message:  created.ErrorMessage,
		}
	}
	if created.SID == "" {
		return nil, &ProviderError{
			Provider:  "twilio",
			Message:   "response carried no sid",
			Transient: true,
		}
	}

	return &domain.SendResult{ProviderID: created.SID}, nil
}
