package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
)

// Publisher publishes per-recipient delivery outcomes.
type Publisher interface {
	PublishDelivery(ctx context.Context, event domain.DeliveryEvent) error
	Close() error
}

// NopPublisher drops events. Used when RABBITMQ_URL is unset.
type NopPublisher struct{}

func (NopPublisher) PublishDelivery(context.Context, domain.DeliveryEvent) error { return nil }

func (NopPublisher) Close() error { return nil }

const (
	// EventsExchange is the topic exchange every gateway publishes to.
	EventsExchange = "notify.events"
	// FailedQueueName collects failed deliveries across channels.
	FailedQueueName = "delivery.failed"
)

var supportedChannels = []domain.ChannelName{
	domain.ChannelSMSModem,
	domain.ChannelSMSTwilio,
	domain.ChannelWhatsApp,
	domain.ChannelVoice,
	domain.ChannelTelegram,
	domain.ChannelEmail,
}

// QueueName returns the per-channel event queue, e.g. delivery.whatsapp.
func QueueName(channel domain.ChannelName) string {
	return fmt.Sprintf("delivery.%s", strings.ToLower(channel.String()))
}

// RoutingKey is delivery.<channel>.<sent|failed>.
func RoutingKey(channel string, success bool) string {
	outcome := "failed"
	if success {
		outcome = "sent"
	}
	return fmt.Sprintf("delivery.%s.%s", strings.ToLower(channel), outcome)
}

// QueueNames returns every per-channel event queue.
func QueueNames() []string {
	queues := make([]string, 0, len(supportedChannels))
	for _, channel := range supportedChannels {
		queues = append(queues, QueueName(channel))
	}
	return queues
}
