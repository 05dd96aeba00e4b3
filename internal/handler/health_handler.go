package handler

import (
	"context"
	"math"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/kursadbilgin/notify-gateway/internal/modem"
	"github.com/kursadbilgin/notify-gateway/internal/observability"
)

const modemStatusTimeout = 5 * time.Second

// LivenessSource is satisfied by *health.Tracker.
type LivenessSource interface {
	LastSuccess() time.Time
	SinceSuccess() time.Duration
}

// ModemStatuser is satisfied by *modem.Session.
type ModemStatuser interface {
	Status(ctx context.Context) modem.Status
}

type healthResponse struct {
	Status              string        `json:"status"`
	LastSuccess         string        `json:"last_success"`
	SecondsSinceSuccess float64       `json:"seconds_since_success"`
	ModemStatus         *modem.Status `json:"modem_status,omitempty"`
}

// RegisterHealthRoutes mounts /health and /metrics. modemStatus may be nil
// for channels without a modem.
func RegisterHealthRoutes(
	router fiber.Router,
	tracker LivenessSource,
	timeout time.Duration,
	modemStatus ModemStatuser,
	metrics *observability.Metrics,
) {
	router.Get("/health", HealthHandler(tracker, timeout, modemStatus, metrics))
	router.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
}

// HealthHandler reports the gap since the last successful poll cycle. It
// answers 503 with status "warning" once the gap exceeds timeout but never
// terminates the process itself.
func HealthHandler(tracker LivenessSource, timeout time.Duration, modemStatus ModemStatuser, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		gap := tracker.SinceSuccess()
		metrics.SetSecondsSinceSuccess(gap.Seconds())

		resp := healthResponse{
			Status:              "ok",
			LastSuccess:         tracker.LastSuccess().Format(time.RFC3339),
			SecondsSinceSuccess: math.Round(gap.Seconds()*1000) / 1000,
		}

		if modemStatus != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), modemStatusTimeout)
			status := modemStatus.Status(ctx)
			cancel()
			resp.ModemStatus = &status
		}

		statusCode := fiber.StatusOK
		if gap > timeout {
			resp.Status = "warning"
			statusCode = fiber.StatusServiceUnavailable
		}

		return c.Status(statusCode).JSON(resp)
	}
}
