package genai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubClient struct {
	mu    sync.Mutex
	model string
	out   string
	err   error
	calls int
}

func (s *stubClient) Generate(ctx context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.out, s.err
}

func (s *stubClient) Model() string { return s.model }

type memStore struct {
	closed bool
	data   map[string]string
	ttl    time.Duration
	getErr error
	setErr error
}

func newMemStore() *memStore { return &memStore{data: map[string]string{}} }

func (m *memStore) Get(ctx context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", errCacheMiss
	}
	return v, nil
}

func (m *memStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttl = ttl
	return nil
}

func TestCached_HitAfterMiss(t *testing.T) {
	next := &stubClient{model: "m", out: `{"a":1}`}
	store := newMemStore()
	c := newCached(next, store, time.Hour, discardLogger())

	req := Request{System: "s", Prompt: "p"}
	for i := 0; i < 3; i++ {
		out, err := c.Generate(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != `{"a":1}` {
			t.Errorf("unexpected output %q", out)
		}
	}
	if next.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", next.calls)
	}
	if store.ttl != time.Hour {
		t.Errorf("expected ttl 1h, got %s", store.ttl)
	}
}

func TestCached_DistinctRequests(t *testing.T) {
	next := &stubClient{model: "m", out: "x"}
	c := newCached(next, newMemStore(), time.Minute, discardLogger())

	c.Generate(context.Background(), Request{Prompt: "a"})
	c.Generate(context.Background(), Request{Prompt: "a", Temperature: 0.5})
	c.Generate(context.Background(), Request{Prompt: "b"})
	if next.calls != 3 {
		t.Errorf("expected 3 upstream calls, got %d", next.calls)
	}
}

func TestCached_StoreFailuresBypass(t *testing.T) {
	next := &stubClient{model: "m", out: "x"}
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	store.setErr = errors.New("connection refused")
	c := newCached(next, store, time.Minute, discardLogger())

	out, err := c.Generate(context.Background(), Request{Prompt: "a"})
	if err != nil || out != "x" {
		t.Fatalf("expected upstream answer, got %q, %v", out, err)
	}
}

func TestCached_UpstreamErrorNotCached(t *testing.T) {
	next := &stubClient{model: "m", err: errors.New("boom")}
	store := newMemStore()
	c := newCached(next, store, time.Minute, discardLogger())

	if _, err := c.Generate(context.Background(), Request{Prompt: "a"}); err == nil {
		t.Fatal("expected upstream error")
	}
	if len(store.data) != 0 {
		t.Errorf("expected nothing cached, got %d entries", len(store.data))
	}
}

func TestCacheKey(t *testing.T) {
	a := cacheKey("m", Request{System: "ab", Prompt: "c"})
	b := cacheKey("m", Request{System: "a", Prompt: "bc"})
	if a == b {
		t.Error("expected field boundaries to change the key")
	}
	if a[:len(cachePrefix)] != cachePrefix {
		t.Errorf("expected prefix %q, got %q", cachePrefix, a)
	}
}

func (m *memStore) Close() error {
	m.closed = true
	return nil
}

func TestClose_ReleasesCacheStore(t *testing.T) {
	store := newMemStore()
	var c Client = newCached(&stubClient{model: "m"}, store, time.Minute, discardLogger())

	if err := Close(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !store.closed {
		t.Error("expected cache store to be closed")
	}
}

func TestClose_PlainClients(t *testing.T) {
	if err := Close(&stubClient{model: "m"}); err != nil {
		t.Errorf("expected nil for a client without resources, got %v", err)
	}
	store := newMemStore()
	chain := Fallback{&stubClient{model: "a"}, newCached(&stubClient{model: "b"}, store, time.Minute, discardLogger())}
	if err := Close(chain); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !store.closed {
		t.Error("expected cache inside fallback chain to be closed")
	}
}
