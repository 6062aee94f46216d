//go:build integration

package hermes

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"
)

func skipWithoutNATS(t *testing.T) string {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set, skipping integration test")
	}
	return url
}

func TestIntegration_PubSub(t *testing.T) {
	natsURL := skipWithoutNATS(t)
	ctx := context.Background()
	logger := slog.Default()

	client, err := NewClient(ctx, natsURL, os.Getenv("NATS_TOKEN"), logger)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	received := make(chan RetrainRequested, 1)

	err = client.Subscribe(SubjectRetrainRequested, func(subject string, data []byte) {
		var ev RetrainRequested
		json.Unmarshal(data, &ev)
		received <- ev
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	flushCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Flush(flushCtx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	err = client.Publish(SubjectRetrainRequested, RetrainRequested{
		EventID:    NewEventID(),
		NewRecords: 2,
		Reason:     "integration_test",
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case ev := <-received:
		if ev.NewRecords != 2 || ev.Reason != "integration_test" {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}
