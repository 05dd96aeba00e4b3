package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/notify-gateway/internal/cooldown"
	goredis "github.com/redis/go-redis/v9"
)

var _ cooldown.Set = (*CooldownSet)(nil)

// CooldownSet keeps cooldown keys in Redis with a PX expiry, so the window
// survives restarts and is shared by every process on the same channel.
type CooldownSet struct {
	client  *goredis.Client
	channel string
}

func NewCooldownSet(client *goredis.Client, channel string) (*CooldownSet, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if strings.TrimSpace(channel) == "" {
		return nil, fmt.Errorf("channel is required")
	}
	return &CooldownSet{client: client, channel: channel}, nil
}

func (s *CooldownSet) Contains(ctx context.Context, recipient string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(recipient)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check cooldown: %w", err)
	}
	return n > 0, nil
}

func (s *CooldownSet) Insert(ctx context.Context, recipient string, window time.Duration) error {
	if window <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, s.key(recipient), time.Now().UTC().Format(time.RFC3339), window).Err(); err != nil {
		return fmt.Errorf("failed to insert cooldown: %w", err)
	}
	return nil
}

// Purge is a no-op: Redis expires the keys itself.
func (s *CooldownSet) Purge(context.Context) (int, error) {
	return 0, nil
}

func (s *CooldownSet) key(recipient string) string {
	return key("cooldown", s.channel, recipient)
}
