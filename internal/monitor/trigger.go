package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cipher241/Smart-Cities-Banorte/internal/hermes"
	"github.com/cipher241/Smart-Cities-Banorte/internal/storage"
)

// ReasonNewData is the reason recorded when new warehouse rows fire a retrain.
const ReasonNewData = "new_data_detected"

// Trigger asks the trainer for another round.
type Trigger interface {
	Fire(ctx context.Context, req hermes.RetrainRequested) error
}

// Triggers fires every trigger in order and joins their errors.
type Triggers []Trigger

func (ts Triggers) Fire(ctx context.Context, req hermes.RetrainRequested) error {
	var errs []error
	for _, t := range ts {
		if err := t.Fire(ctx, req); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FileTrigger signals through a JSON flag file that the trainer polls.
type FileTrigger struct {
	Path string
}

func (t FileTrigger) Fire(_ context.Context, req hermes.RetrainRequested) error {
	if err := storage.WriteJSON(t.Path, req); err != nil {
		return fmt.Errorf("write trigger flag: %w", err)
	}
	return nil
}

// Take reads and removes the flag file. ok is false when no flag is set.
func (t FileTrigger) Take() (req hermes.RetrainRequested, ok bool, err error) {
	data, err := os.ReadFile(t.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return req, false, nil
		}
		return req, false, fmt.Errorf("read trigger flag: %w", err)
	}
	if err := os.Remove(t.Path); err != nil && !os.IsNotExist(err) {
		return req, false, fmt.Errorf("remove trigger flag: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			// A flag that exists still means retrain.
			req = hermes.RetrainRequested{Reason: "unreadable_flag"}
		}
	}
	return req, true, nil
}

// Watch polls the flag file every interval and sends each request it takes.
// The channel is closed when ctx is done.
func (t FileTrigger) Watch(ctx context.Context, interval time.Duration, logger *slog.Logger) <-chan hermes.RetrainRequested {
	out := make(chan hermes.RetrainRequested)
	go func() {
		defer close(out)
		Loop(ctx, interval, func(ctx context.Context) {
			req, ok, err := t.Take()
			if err != nil {
				logger.Error("trigger poll failed", "path", t.Path, "error", err)
				return
			}
			if !ok {
				return
			}
			select {
			case out <- req:
			case <-ctx.Done():
			}
		})
	}()
	return out
}

// EventTrigger publishes retrain requests on the event bus.
type EventTrigger struct {
	Publisher hermes.Publisher
}

func (t EventTrigger) Fire(_ context.Context, req hermes.RetrainRequested) error {
	if err := t.Publisher.Publish(hermes.SubjectRetrainRequested, req); err != nil {
		return fmt.Errorf("publish retrain request: %w", err)
	}
	return nil
}

// Subscriber registers a raw message handler for a subject.
type Subscriber interface {
	Subscribe(subject string, handler func(subject string, data []byte)) error
}

// SubscribeRetrains delivers retrain requests from the event bus on the
// returned channel. Requests arriving while the consumer is busy are
// coalesced: at most one stays pending.
func SubscribeRetrains(sub Subscriber, logger *slog.Logger) (<-chan hermes.RetrainRequested, error) {
	out := make(chan hermes.RetrainRequested, 1)
	err := sub.Subscribe(hermes.SubjectRetrainRequested, func(_ string, data []byte) {
		var req hermes.RetrainRequested
		if err := json.Unmarshal(data, &req); err != nil {
			logger.Warn("failed to parse retrain request", "error", err)
			return
		}
		select {
		case out <- req:
		default:
			logger.Debug("retrain already pending, request coalesced")
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
