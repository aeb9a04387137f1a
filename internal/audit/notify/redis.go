package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier publishes notifications on a Redis pub/sub channel for
// dashboards subscribed to live security activity. Publishing to a channel
// with no subscribers is a no-op, which is exactly the best-effort contract.
type RedisNotifier struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisNotifier creates a Redis-backed notification sink.
func NewRedisNotifier(client redis.UniversalClient, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (r *RedisNotifier) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(map[string]any{
		"kind":        n.Kind,
		"id":          n.ID.String(),
		"action":      n.Action,
		"alertType":   n.AlertType,
		"severity":    n.Severity,
		"description": n.Description,
		"actorId":     n.ActorID,
		"ip":          n.IPAddress,
		"createdAt":   n.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
