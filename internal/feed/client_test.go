package feed

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

	"github.com/google/go-cmp/cmp"
)

type mockTransport struct {
	mu        sync.Mutex
	responses []mockResponse
	attempts  int
	lastReq   *http.Request
}

type mockResponse struct {
	body       string
	statusCode int
	err        error
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastReq = req

	r := m.responses[m.attempts]
	if m.attempts < len(m.responses)-1 {
		m.attempts++
	}
	if r.err != nil {
		return nil, r.err
	}
	return &http.Response{
		StatusCode: r.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(r.body)),
	}, nil
}

func (m *mockTransport) attemptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const wellFormed = `{"result": [{"pokemon_id": "eevee", "latitude": 1.31, "longitude": 103.81}]}`

func TestQuerySuccess(t *testing.T) {
	transport := &mockTransport{responses: []mockResponse{
		{body: wellFormed, statusCode: 200},
	}}
	c := New(transport, "https://api.fastpokemap.se/", "allow-all", discardLogger(), WithBackoff(time.Millisecond))

	resp, err := c.Query(context.Background(), 1.31, 103.81)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(1, len(resp.Events)); diff != "" {
		t.Errorf("event count mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryRequestShape(t *testing.T) {
	transport := &mockTransport{responses: []mockResponse{
		{body: wellFormed, statusCode: 200},
	}}
	c := New(transport, "https://api.fastpokemap.se/", "allow-all", discardLogger(), WithBackoff(time.Millisecond))

	if _, err := c.Query(context.Background(), 1.31, 103.81); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := transport.lastReq
	for header, want := range map[string]string{
		"Origin":    "https://fastpokemap.se",
		"Authority": "api.fastpokemap.se",
	} {
		if got := req.Header.Get(header); got != want {
			t.Errorf("header %s = %q, want %q", header, got, want)
		}
	}
	if !strings.Contains(req.Header.Get("User-Agent"), "Mozilla/5.0") {
		t.Errorf("unexpected user agent %q", req.Header.Get("User-Agent"))
	}

	q := req.URL.Query()
	for param, want := range map[string]string{
		"key": "allow-all",
		"ts":  "0",
		"lat": "1.31",
		"lng": "103.81",
	} {
		if got := q.Get(param); got != want {
			t.Errorf("query param %s = %q, want %q", param, got, want)
		}
	}
}

func TestQueryRetriesUntilWellFormed(t *testing.T) {
	tests := []struct {
		name     string
		failures []mockResponse
	}{
		{
			name: "network errors",
			failures: []mockResponse{
				{err: io.ErrUnexpectedEOF},
				{err: io.ErrUnexpectedEOF},
			},
		},
		{
			name: "empty bodies",
			failures: []mockResponse{
				{body: "", statusCode: 200},
				{body: "", statusCode: 200},
				{body: "", statusCode: 200},
			},
		},
		{
			name: "missing result marker",
			failures: []mockResponse{
				{body: `{"error": "overloaded"}`, statusCode: 200},
			},
		},
		{
			name: "http error status",
			failures: []mockResponse{
				{body: "bad gateway", statusCode: 502},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			responses := append(append([]mockResponse(nil), tt.failures...), mockResponse{body: wellFormed, statusCode: 200})
			transport := &mockTransport{responses: responses}
			c := New(transport, "https://api.fastpokemap.se/", "allow-all", discardLogger(), WithBackoff(time.Millisecond))

			resp, err := c.Query(context.Background(), 1.31, 103.81)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(1, len(resp.Events)); diff != "" {
				t.Errorf("event count mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(len(tt.failures), transport.attemptCount()); diff != "" {
				t.Errorf("retry count mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQueryCancelledContext(t *testing.T) {
	transport := &mockTransport{responses: []mockResponse{
		{body: "", statusCode: 200},
	}}
	c := New(transport, "https://api.fastpokemap.se/", "allow-all", discardLogger(), WithBackoff(10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := c.Query(ctx, 1.31, 103.81); err == nil {
		t.Fatal("expected error when context expires during retries")
	}
}
