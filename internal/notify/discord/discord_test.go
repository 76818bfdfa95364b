package discord

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/crimson-sun/tribewatch/internal/httpclient"
	"github.com/crimson-sun/tribewatch/internal/notify"
)

type recorder struct {
	mu       sync.Mutex
	payloads []map[string]any
}

func (r *recorder) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		var p map[string]any
		json.Unmarshal(body, &p)
		r.mu.Lock()
		r.payloads = append(r.payloads, p)
		r.mu.Unlock()
		w.WriteHeader(status)
	}
}

func (r *recorder) all() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]map[string]any(nil), r.payloads...)
}

func TestSend(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusNoContent))
	defer srv.Close()

	s, err := New(srv.URL, WithUsername("Tribe Watch"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Send(context.Background(), "Your Rex was killed by a Giga"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got := rec.all()
	if len(got) != 1 {
		t.Fatalf("got %d posts, want 1", len(got))
	}
	if got[0]["content"] != "Your Rex was killed by a Giga" {
		t.Errorf("content = %v", got[0]["content"])
	}
	if got[0]["username"] != "Tribe Watch" {
		t.Errorf("username = %v", got[0]["username"])
	}
	am, ok := got[0]["allowed_mentions"].(map[string]any)
	if !ok {
		t.Fatalf("allowed_mentions missing: %v", got[0])
	}
	if parse, ok := am["parse"].([]any); !ok || len(parse) != 0 {
		t.Errorf("allowed_mentions.parse = %v, want []", am["parse"])
	}
}

func TestSendTruncates(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusNoContent))
	defer srv.Close()

	s, _ := New(srv.URL)
	long := strings.Repeat("é", 2500)
	if err := s.Send(context.Background(), long); err != nil {
		t.Fatalf("Send: %v", err)
	}
	content := rec.all()[0]["content"].(string)
	if n := utf8.RuneCountInString(content); n != maxContentLen {
		t.Fatalf("content has %d runes, want %d", n, maxContentLen)
	}
	if !strings.HasSuffix(content, "...") {
		t.Fatal("truncated content should end with ...")
	}
}

func TestSendClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "Unknown Webhook", "code": 10015}`))
	}))
	defer srv.Close()

	s, _ := New(srv.URL)
	err := s.Send(context.Background(), "x")
	var sendErr *notify.SendError
	if !errors.As(err, &sendErr) || sendErr.Sink != "discord" {
		t.Fatalf("expected discord SendError, got %v", err)
	}
	var apiErr *httpclient.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected wrapped 404, got %v", err)
	}
}

func TestSendRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0.05")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s, _ := New(srv.URL, WithClientOptions(httpclient.WithBackoff(time.Millisecond)))
	if err := s.Send(context.Background(), "x"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestSendRateLimiterHonoursContext(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusNoContent))
	defer srv.Close()

	s, _ := New(srv.URL, WithRate(rate.Every(time.Hour), 1))
	if err := s.Send(context.Background(), "first"); err != nil {
		t.Fatalf("first Send: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Send(ctx, "second"); err == nil {
		t.Fatal("expected limiter wait to fail within the deadline")
	}
	if n := len(rec.all()); n != 1 {
		t.Fatalf("got %d posts, want 1", n)
	}
}

func TestNewRequiresURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty URL")
	}
}
