//go:build integration

package notify_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/Louguiman/tekra-store-sub002/internal/audit/notify"
	"github.com/Louguiman/tekra-store-sub002/internal/platform/config"
	"github.com/Louguiman/tekra-store-sub002/pkg/testutil/containers"
)

func TestKafkaNotifierProducesBufferedNotifications(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	rp := containers.NewRedpandaContainer(t)
	t.Cleanup(func() { _ = rp.Container.Terminate(context.Background()) })

	const topic = "audit.security"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink, err := notify.NewKafkaNotifier(config.KafkaConfig{
		Brokers:    []string{rp.Broker},
		Topic:      topic,
		BufferSize: 100,
	}, logger)
	require.NoError(t, err)

	runCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sink.Run(runCtx)
	}()

	id := uuid.New()
	created := time.Now().UTC()
	require.NoError(t, sink.Notify(context.Background(), notify.Notification{
		Kind:        notify.KindEvent,
		ID:          id,
		Action:      "login",
		Severity:    "medium",
		Description: "Failed login",
		ActorID:     "supplier-7",
		IPAddress:   "198.51.100.4",
		CreatedAt:   created,
	}))

	// The Run loop flushes once a second; wait for the buffer to drain.
	require.Eventually(t, func() bool {
		return sink.Buffered() == 0
	}, 15*time.Second, 100*time.Millisecond)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	fetchCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fetches := consumer.PollFetches(fetchCtx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)
	require.Equal(t, id.String(), string(records[0].Key))

	var got map[string]any
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.Equal(t, "event", got["Kind"])
	require.Equal(t, id.String(), got["ID"])
	require.Equal(t, "login", got["Action"])
	require.Equal(t, "medium", got["Severity"])
	require.Equal(t, "supplier-7", got["ActorID"])
	require.Equal(t, "198.51.100.4", got["IP"])

	stop()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("run loop did not shut down")
	}
}
