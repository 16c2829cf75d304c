package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"coolify-backup/internal/config"
)

func TestWebhookNotifyPayload(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
	}))
	defer srv.Close()

	w := &Webhook{URL: srv.URL, Client: srv.Client()}
	w.Notify(context.Background(), Event{
		Outcome:   OutcomePartial,
		Succeeded: 3,
		Failed:    1,
		Details:   []string{"wiki: mysql dump failed"},
		Duration:  95 * time.Second,
	})

	if got.Status != "partial" || got.Succeeded != 3 || got.Failed != 1 {
		t.Errorf("payload = %+v", got)
	}
	if got.Duration != 95 {
		t.Errorf("duration_seconds = %d", got.Duration)
	}
	if len(got.Details) != 1 {
		t.Errorf("details = %v", got.Details)
	}
}

func TestWebhookRetriesOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
	}))
	defer srv.Close()

	w := &Webhook{URL: srv.URL, Client: srv.Client()}
	w.Notify(context.Background(), Event{Outcome: OutcomeSuccess})

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want retry after 502", got)
	}
}

func TestHealthcheckPingerPaths(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
	}))
	defer srv.Close()

	h := &HealthcheckPinger{URL: srv.URL + "/ping/abc", Client: srv.Client()}
	h.Heartbeat(context.Background(), PhaseStart)
	h.Notify(context.Background(), Event{Outcome: OutcomeSuccess})
	h.Notify(context.Background(), Event{Outcome: OutcomeFail})

	want := []string{"/ping/abc/start", "/ping/abc", "/ping/abc/fail"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths = %v, want %v", paths, want)
			break
		}
	}
}

func TestHealthcheckPartialIsSuccess(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
	}))
	defer srv.Close()

	h := &HealthcheckPinger{URL: srv.URL + "/ping/abc", Client: srv.Client()}
	h.Notify(context.Background(), Event{Outcome: OutcomePartial})

	if len(paths) != 1 || paths[0] != "/ping/abc" {
		t.Errorf("paths = %v, partial runs ping the success URL", paths)
	}
}

func TestNewAssemblesSinks(t *testing.T) {
	if _, ok := New(&config.Config{}).(Nop); !ok {
		t.Error("unconfigured notifier is not Nop")
	}
	if _, ok := New(&config.Config{WebhookURL: "http://x"}).(*Webhook); !ok {
		t.Error("webhook-only config did not yield Webhook")
	}
	n := New(&config.Config{WebhookURL: "http://x", HealthcheckURL: "http://y"})
	if _, ok := n.(Multi); !ok {
		t.Error("two endpoints did not yield Multi")
	}
}
