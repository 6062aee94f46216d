// Package queue distributes document processing over an asynq work queue so
// several workers can share the docs directory.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"

	"github.com/cipher241/Smart-Cities-Banorte/internal/processor"
)

const (
	TypeProcessDocument = "document:process"
	QueueName           = "banorte:documents"

	maxRetry = 3
)

// ProcessPayload is the task body for TypeProcessDocument.
type ProcessPayload struct {
	Path string `json:"path"`
}

// NewProcessTask builds the task for the document at path. The task id is
// derived from the file name so a document is queued at most once at a time.
func NewProcessTask(path string) (*asynq.Task, error) {
	payload, err := json.Marshal(ProcessPayload{Path: path})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeProcessDocument, payload,
		asynq.TaskID(taskID(path)),
		asynq.Queue(QueueName),
		asynq.MaxRetry(maxRetry),
	), nil
}

func taskID(path string) string {
	return "document:" + filepath.Base(path)
}

// Enqueuer puts documents on the queue. It satisfies monitor.Dispatcher.
type Enqueuer struct {
	client *asynq.Client
	logger *slog.Logger
}

func NewEnqueuer(redisURL string, logger *slog.Logger) (*Enqueuer, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Enqueuer{client: asynq.NewClient(opt), logger: logger}, nil
}

// Dispatch enqueues path. A document that is already queued is not an error.
func (e *Enqueuer) Dispatch(ctx context.Context, path string) error {
	task, err := NewProcessTask(path)
	if err != nil {
		return err
	}
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			e.logger.Debug("document already queued", "path", path)
			return nil
		}
		return fmt.Errorf("enqueue %s: %w", filepath.Base(path), err)
	}
	e.logger.Info("document queued", "path", path, "task_id", info.ID, "queue", info.Queue)
	return nil
}

func (e *Enqueuer) Close() error {
	return e.client.Close()
}

// Processor runs the pipeline for one document.
type Processor interface {
	Process(ctx context.Context, path string) (*processor.Report, error)
}

// Consumer executes queued documents.
type Consumer struct {
	server *asynq.Server
	proc   Processor
	logger *slog.Logger
}

func NewConsumer(redisURL string, concurrency int, proc Processor, logger *slog.Logger) (*Consumer, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueName: 1},
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			// 30s, 1m, 2m
			return time.Duration(1<<uint(n)) * 30 * time.Second
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error("task failed", "type", task.Type(), "error", err)
		}),
		Logger:   slogAdapter{logger},
		LogLevel: asynq.WarnLevel,
	})

	return &Consumer{server: server, proc: proc, logger: logger}, nil
}

// Run serves tasks until ctx is done, then shuts down gracefully.
func (c *Consumer) Run(ctx context.Context) error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeProcessDocument, c.HandleProcessTask)

	c.logger.Info("worker started", "queue", QueueName)
	if err := c.server.Start(mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	<-ctx.Done()
	c.logger.Info("shutting down worker")
	c.server.Shutdown()
	return nil
}

// HandleProcessTask runs the pipeline for one task. Bad payloads are not
// retried.
func (c *Consumer) HandleProcessTask(ctx context.Context, task *asynq.Task) error {
	var p ProcessPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.Path == "" {
		return fmt.Errorf("empty document path: %w", asynq.SkipRetry)
	}

	rep, err := c.proc.Process(ctx, p.Path)
	if err != nil {
		return fmt.Errorf("process %s: %w", filepath.Base(p.Path), err)
	}
	if rep.Skipped {
		c.logger.Debug("task skipped, already processed", "doc", rep.Doc)
	}
	return nil
}

// slogAdapter routes asynq's internal logging through slog.
type slogAdapter struct{ l *slog.Logger }

func (a slogAdapter) Debug(args ...any) { a.l.Debug(fmt.Sprint(args...)) }
func (a slogAdapter) Info(args ...any)  { a.l.Info(fmt.Sprint(args...)) }
func (a slogAdapter) Warn(args ...any)  { a.l.Warn(fmt.Sprint(args...)) }
func (a slogAdapter) Error(args ...any) { a.l.Error(fmt.Sprint(args...)) }
func (a slogAdapter) Fatal(args ...any) { a.l.Error(fmt.Sprint(args...)) }
