package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/notify-gateway/internal/domain"
)

const DefaultTelegramBaseURL = "https://api.telegram.org"

// TelegramClient calls the Bot API sendMessage method.
type TelegramClient struct {
	client  *resty.Client
	baseURL string
	token   string
}

func NewTelegramClient(token, baseURL string) (*TelegramClient, error) {
	client := resty.New()
	client.SetTimeout(defaultHTTPTimeout)
	client.SetRetryCount(0)

	return NewTelegramClientWithClient(token, baseURL, client)
}

func NewTelegramClientWithClient(token, baseURL string, client *resty.Client) (*TelegramClient, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultTelegramBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid telegram base url: %w", err)
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultHTTPTimeout)
	}
	client.SetRetryCount(0)

	return &TelegramClient{
		client:  client,
		baseURL: baseURL,
		token:   token,
	}, nil
}

// SendMessage posts text to chatID. markup, when non-nil, is sent as
// reply_markup.
func (c *TelegramClient) SendMessage(ctx context.Context, chatID int64, text string, markup any) (*domain.SendResult, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("telegram client is not initialized")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("%w: telegram chat id is required", domain.ErrValidation)
	}

	params := map[string]string{
		"chat_id": strconv.FormatInt(chatID, 10),
		"text":    text,
	}
	if markup != nil {
		encoded, err := json.Marshal(markup)
		if err != nil {
			return nil, fmt.Errorf("failed to encode reply markup: %w", err)
		}
		params["reply_markup"] = string(encoded)
	}

	var result telegramResponse
	response, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&result).
		SetError(&result).
		Get(fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token))
	if err != nil {
		return nil, requestError("telegram", redactToken(err, c.token))
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, statusError("telegram", statusCode, result.ErrorCode, result.Description)
	}
	if !result.OK {
		return nil, &ProviderError{
			Provider:   "telegram",
			StatusCode: statusCode,
			Code:       result.ErrorCode,
			Message:    result.Description,
		}
	}

	return &domain.SendResult{ProviderID: strconv.FormatInt(result.Result.MessageID, 10)}, nil
}

// redactToken keeps the bot token out of error text that ends up in logs
// and the audit table.
func redactToken(err error, token string) error {
	if err == nil || token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), token, "<token>"))
}
