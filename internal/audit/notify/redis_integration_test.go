//go:build integration

package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Louguiman/tekra-store-sub002/internal/audit/notify"
	"github.com/Louguiman/tekra-store-sub002/pkg/testutil/containers"
)

func TestRedisNotifierPublishesToChannel(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	rc := containers.NewRedisContainer(t)
	t.Cleanup(func() {
		_ = rc.Client.Close()
		_ = rc.Container.Terminate(context.Background())
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const channel = "audit.notifications"

	sub := rc.Client.Subscribe(ctx, channel)
	t.Cleanup(func() { _ = sub.Close() })

	// Wait for the subscription to be active before publishing.
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	sink := notify.NewRedisNotifier(rc.Client, channel)

	id := uuid.New()
	created := time.Now().UTC().Truncate(time.Millisecond)
	err = sink.Notify(ctx, notify.Notification{
		Kind:        notify.KindAlert,
		ID:          id,
		AlertType:   "brute_force",
		Severity:    "high",
		Description: "Multiple failed login attempts",
		IPAddress:   "203.0.113.9",
		CreatedAt:   created,
	})
	require.NoError(t, err)

	select {
	case msg := <-sub.Channel():
		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		require.Equal(t, "alert", got["kind"])
		require.Equal(t, id.String(), got["id"])
		require.Equal(t, "brute_force", got["alertType"])
		require.Equal(t, "high", got["severity"])
		require.Equal(t, "203.0.113.9", got["ip"])

		ts, err := time.Parse(time.RFC3339Nano, got["createdAt"].(string))
		require.NoError(t, err)
		require.True(t, ts.Equal(created))
	case <-ctx.Done():
		t.Fatal("timed out waiting for published notification")
	}
}
