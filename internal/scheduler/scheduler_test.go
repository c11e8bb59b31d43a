package scheduler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/C0okiesl/KopiRadar/internal/feed"
	"github.com/C0okiesl/KopiRadar/internal/geocode"
	"github.com/C0okiesl/KopiRadar/internal/geofence"
	"github.com/C0okiesl/KopiRadar/internal/radar"
	"github.com/C0okiesl/KopiRadar/internal/storage"
)

type mockSender struct {
	mu       sync.Mutex
	messages []string
	notify   chan struct{}
}

func newMockSender() *mockSender {
	return &mockSender{notify: make(chan struct{}, 16)}
}

func (m *mockSender) SendMessage(chatID int64, text string) {
	m.mu.Lock()
	m.messages = append(m.messages, text)
	m.mu.Unlock()
	m.notify <- struct{}{}
}

func (m *mockSender) all() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}

type feedTransport struct {
	mu       sync.Mutex
	body     string
	requests int
}

func (t *feedTransport) Do(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	t.requests++
	body := t.body
	t.mu.Unlock()
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}, nil
}

func (t *feedTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requests
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRadar(t *testing.T, body string) (*radar.Service, *feedTransport) {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	transport := &feedTransport{body: body}
	client := feed.New(transport, "https://api.example.test/", "allow-all", discardLogger(), feed.WithBackoff(time.Millisecond))
	fences := geofence.New(store, 0.003)
	cfg := radar.Config{DefaultLat: 1.3490515, DefaultLng: 103.9414295, HistoryRetention: 7 * 24 * time.Hour}
	return radar.New(store, client, geocode.Disabled{}, fences, cfg, discardLogger()), transport
}

func waitNotify(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestRunDeliversDigest(t *testing.T) {
	svc, _ := newTestRadar(t, `{"result": [{"pokemon_id": "eevee", "latitude": 1.31, "longitude": 103.81}]}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.EnsureUser(ctx, 100); err != nil {
		t.Fatalf("ensure user: %v", err)
	}

	sender := newMockSender()
	sched := New(svc, sender, time.Hour, discardLogger())

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	waitNotify(t, sender.notify)

	msgs := sender.all()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0], "eevee:") {
		t.Errorf("unexpected digest %q", msgs[0])
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestWatchSkipsEmptyDigest(t *testing.T) {
	svc, transport := newTestRadar(t, `{"result": []}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.EnsureUser(ctx, 100); err != nil {
		t.Fatalf("ensure user: %v", err)
	}

	sender := newMockSender()
	sched := New(svc, sender, time.Hour, discardLogger())
	sched.AddWatch(ctx, 100)

	deadline := time.Now().Add(5 * time.Second)
	for transport.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("watch never polled the feed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := sender.all(); len(got) != 0 {
		t.Errorf("expected no messages for empty feed, got %v", got)
	}
}

func TestAddWatchIdempotent(t *testing.T) {
	svc, transport := newTestRadar(t, `{"result": []}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.EnsureUser(ctx, 100); err != nil {
		t.Fatalf("ensure user: %v", err)
	}

	sender := newMockSender()
	sched := New(svc, sender, time.Hour, discardLogger())
	sched.AddWatch(ctx, 100)
	sched.AddWatch(ctx, 100)

	deadline := time.Now().Add(5 * time.Second)
	for transport.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("watch never polled the feed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	if got := transport.count(); got != 1 {
		t.Errorf("expected a single immediate poll, got %d", got)
	}
}

func TestRemoveWatchStopsPolling(t *testing.T) {
	svc, transport := newTestRadar(t, `{"result": []}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.EnsureUser(ctx, 100); err != nil {
		t.Fatalf("ensure user: %v", err)
	}

	sender := newMockSender()
	sched := New(svc, sender, 20*time.Millisecond, discardLogger())
	sched.AddWatch(ctx, 100)

	deadline := time.Now().Add(5 * time.Second)
	for transport.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("watch never polled the feed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	sched.RemoveWatch(100)
	time.Sleep(50 * time.Millisecond)
	after := transport.count()
	time.Sleep(100 * time.Millisecond)

	if got := transport.count(); got != after {
		t.Errorf("polling continued after RemoveWatch: %d -> %d", after, got)
	}
}

func TestTickProvisionsUnknownUser(t *testing.T) {
	svc, _ := newTestRadar(t, `{"result": []}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := newMockSender()
	sched := New(svc, sender, time.Hour, discardLogger())
	sched.tick(ctx, 100)

	if !svc.IsRegistered(100) {
		t.Error("expected tick to provision the user")
	}
}
