package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ggokuldas06/tds-project1/pkg/models"
)

func testNotification() *models.EvaluationNotification {
	return &models.EvaluationNotification{
		Email:     "student@example.com",
		Task:      "sum-of-sales-x1z9k",
		Round:     2,
		Nonce:     "ab12-cd34",
		RepoURL:   "https://github.com/octocat/sum-of-sales-x1z9k",
		CommitSHA: "abc123",
		PagesURL:  "https://octocat.github.io/sum-of-sales-x1z9k/",
	}
}

func TestNotifyDeliversPayload(t *testing.T) {
	t.Parallel()

	received := make(chan models.EvaluationNotification, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		var got models.EvaluationNotification
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		received <- got
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	d := NewDispatcher(3, []time.Duration{time.Millisecond})

	if !d.Notify(context.Background(), server.URL, testNotification()) {
		t.Fatal("expected delivery to succeed")
	}

	got := <-received
	want := testNotification()
	if got != *want {
		t.Errorf("payload = %+v, want %+v", got, *want)
	}
}

func TestNotifyRetriesUntilAccepted(t *testing.T) {
	t.Parallel()

	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 2 {
			http.Error(w, "not ready", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	d := NewDispatcher(5, []time.Duration{time.Millisecond})

	if !d.Notify(context.Background(), server.URL, testNotification()) {
		t.Fatal("expected delivery to succeed on the third attempt")
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestNotifyExhaustsRetries(t *testing.T) {
	t.Parallel()

	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	d := NewDispatcher(3, []time.Duration{time.Millisecond})

	if d.Notify(context.Background(), server.URL, testNotification()) {
		t.Fatal("expected delivery to fail")
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Errorf("attempts = %d, want exactly maxRetries", got)
	}
}

func TestNotifyOnlyOKisDelivery(t *testing.T) {
	t.Parallel()

	// 202 Accepted is still not confirmation.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(server.Close)

	d := NewDispatcher(1, []time.Duration{time.Millisecond})

	if d.Notify(context.Background(), server.URL, testNotification()) {
		t.Fatal("non-200 response must not count as delivered")
	}
}

func TestNotifyCancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	d := NewDispatcher(5, []time.Duration{time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	if d.Notify(ctx, server.URL, testNotification()) {
		t.Fatal("expected cancelled notification to fail")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("cancellation should cut the backoff short")
	}
}

func TestDelayForClampsPastEnd(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(5, []time.Duration{time.Second, 2 * time.Second})

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 2 * time.Second},
		{4, 2 * time.Second},
	}
	for _, tt := range tests {
		if got := d.delayFor(tt.attempt); got != tt.want {
			t.Errorf("delayFor(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestNewDispatcherGuards(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(0, nil)
	if d.maxRetries != 1 {
		t.Errorf("maxRetries = %d, want 1", d.maxRetries)
	}
	if len(d.retryDelays) == 0 {
		t.Error("expected default retry delays")
	}
}

func TestNotifyUnreachableServer(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(2, []time.Duration{time.Millisecond})

	if d.Notify(context.Background(), "http://127.0.0.1:1/notify", testNotification()) {
		t.Fatal("expected delivery to an unreachable server to fail")
	}
}
