package protocol

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"askbridge/internal/domain"
)

func TestRetry_TransientErrorsThenSuccess(t *testing.T) {
	var mu sync.Mutex
	var arrivals []time.Time

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		arrivals = append(arrivals, time.Now())
		n := len(arrivals)
		mu.Unlock()

		if n <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, envelopeBody(`{"answer":"eventually","response_id":"r"}`))
	}))
	defer srv.Close()

	result, err := testClient(t, srv).Ask(context.Background(), "tok", domain.AskRequest{Query: "q"})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if result.Answer != "eventually" {
		t.Fatalf("unexpected answer: %q", result.Answer)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(arrivals) != 4 {
		t.Fatalf("expected 4 attempts, got %d", len(arrivals))
	}
	// Backoff doubles per attempt, so inter-attempt gaps never decrease.
	var prev time.Duration
	for i := 1; i < len(arrivals); i++ {
		gap := arrivals[i].Sub(arrivals[i-1])
		if gap < prev {
			t.Fatalf("inter-attempt delay decreased: %v after %v", gap, prev)
		}
		prev = gap
	}
}

func TestRetry_ExhaustedRetriesFail(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(t, srv).Ask(context.Background(), "tok", domain.AskRequest{Query: "q"})
	if err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	if attempts != 4 {
		t.Fatalf("expected 1 attempt + 3 retries, got %d", attempts)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected wrapped StatusError 502, got %v", err)
	}
}

func TestRetry_ClientTimeoutNeverRetried(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := New(Config{
		BaseURL:    srv.URL,
		Timeout:    50 * time.Millisecond,
		RetryBase:  time.Millisecond,
		HTTPClient: srv.Client(),
		Logger:     testLogger(),
	})

	_, err := client.Ask(context.Background(), "tok", domain.AskRequest{Query: "q"})
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("a client-timeout abort must not be retried, got %d attempts", attempts)
	}
}

func TestRetry_MidStreamTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, streamEvent("status", `{"stage":"thinking"}`))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := New(Config{
		BaseURL:    srv.URL,
		Timeout:    100 * time.Millisecond,
		HTTPClient: srv.Client(),
		Logger:     testLogger(),
	})

	var events int
	_, err := client.AskStream(context.Background(), "tok", domain.AskRequest{Query: "q"},
		func(domain.StreamEvent) { events++ })
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected TimeoutError despite partial progress, got %v", err)
	}
	if events != 1 {
		t.Fatalf("expected the pre-timeout event to be delivered, got %d", events)
	}
}

func TestRetry_FatalStatusNotRetried(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := testClient(t, srv).Ask(context.Background(), "tok", domain.AskRequest{Query: "q"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected StatusError 400, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("4xx must not be retried, got %d attempts", attempts)
	}
}

func TestRetry_ConflictIsSingleShot(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	_, err := testClient(t, srv).Ask(context.Background(), "tok", domain.AskRequest{Query: "q"})
	if err == nil {
		t.Fatal("expected an error result for 409")
	}
	if attempts != 1 {
		t.Fatalf("409 must not be retried, got %d attempts", attempts)
	}
	if Classify(err) != ActionInformational {
		t.Fatalf("409 must classify informational, got %v", Classify(err))
	}
}
