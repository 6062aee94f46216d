// Package genai talks to hosted text-generation models.
package genai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request is a single-turn generation request.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Client generates text from a prompt.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
	Model() string
}

// ErrEmptyResponse is returned when the provider answers without any text.
var ErrEmptyResponse = errors.New("empty response content")

// APIError is a non-200 answer from a provider.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error %d: %s: %s", e.StatusCode, e.Type, e.Message)
}

const defaultTimeout = 120 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

// Fallback tries each client in order and returns the first success. It
// mirrors picking the next model when the preferred one is unavailable.
type Fallback []Client

func (f Fallback) Generate(ctx context.Context, req Request) (string, error) {
	var errs []error
	for _, c := range f {
		out, err := c.Generate(ctx, req)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		errs = append(errs, fmt.Errorf("%s: %w", c.Model(), err))
	}
	if len(errs) == 0 {
		return "", errors.New("no generation clients configured")
	}
	return "", errors.Join(errs...)
}

// Model returns the preferred model name.
func (f Fallback) Model() string {
	if len(f) == 0 {
		return ""
	}
	return f[0].Model()
}

// Close releases whatever c holds open, such as a cache connection. Clients
// without resources are left alone.
func Close(c Client) error {
	switch x := c.(type) {
	case io.Closer:
		return x.Close()
	case Fallback:
		var errs []error
		for _, next := range x {
			errs = append(errs, Close(next))
		}
		return errors.Join(errs...)
	}
	return nil
}
