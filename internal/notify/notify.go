// Package notify delivers end-of-run reports and heartbeat pings. Core
// logic depends only on the Notifier interface; the default is a no-op so
// everything runs and tests without network access.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"coolify-backup/internal/config"
)

// Outcome colors the end-of-run report.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFail    Outcome = "fail"
)

// Phase tags a heartbeat ping.
type Phase string

const (
	PhaseStart   Phase = "start"
	PhaseSuccess Phase = "success"
	PhaseFail    Phase = "fail"
)

// Event is the aggregated result of one run.
type Event struct {
	Outcome   Outcome
	Succeeded int
	Failed    int
	Details   []string
	Duration  time.Duration
}

// Notifier is the reporting sink consumed by the orchestrator.
type Notifier interface {
	Notify(ctx context.Context, event Event)
	Heartbeat(ctx context.Context, phase Phase)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

func (Nop) Heartbeat(context.Context, Phase) {}

// New assembles the configured sinks. Unconfigured endpoints yield Nop.
func New(cfg *config.Config) Notifier {
	var sinks []Notifier
	if cfg.WebhookURL != "" {
		sinks = append(sinks, &Webhook{URL: cfg.WebhookURL})
	}
	if cfg.HealthcheckURL != "" {
		sinks = append(sinks, &HealthcheckPinger{URL: cfg.HealthcheckURL})
	}
	switch len(sinks) {
	case 0:
		return Nop{}
	case 1:
		return sinks[0]
	default:
		return Multi(sinks)
	}
}

// Multi fans out to several sinks.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event Event) {
	for _, n := range m {
		n.Notify(ctx, event)
	}
}

func (m Multi) Heartbeat(ctx context.Context, phase Phase) {
	for _, n := range m {
		n.Heartbeat(ctx, phase)
	}
}

// Webhook POSTs the run report as JSON. Delivery is fire-and-forget with
// bounded timeout and a single retry; failures never fail the run.
type Webhook struct {
	URL    string
	Client *http.Client
}

type webhookPayload struct {
	Status    string   `json:"status"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Details   []string `json:"details,omitempty"`
	Duration  int64    `json:"duration_seconds"`
	Hostname  string   `json:"hostname,omitempty"`
}

func (w *Webhook) Notify(ctx context.Context, event Event) {
	hostname, _ := os.Hostname()
	body, err := json.Marshal(webhookPayload{
		Status:    string(event.Outcome),
		Succeeded: event.Succeeded,
		Failed:    event.Failed,
		Details:   event.Details,
		Duration:  int64(event.Duration.Seconds()),
		Hostname:  hostname,
	})
	if err != nil {
		fmt.Printf("Warning: failed to encode notification: %v\n", err)
		return
	}
	w.post(ctx, w.URL, body)
}

func (w *Webhook) Heartbeat(context.Context, Phase) {}

func (w *Webhook) post(ctx context.Context, url string, body []byte) {
	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			lastErr = err
			break
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()
		if resp.StatusCode < 300 {
			return
		}
		lastErr = fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	fmt.Printf("Warning: notification delivery failed: %v\n", lastErr)
}

// HealthcheckPinger GETs a healthchecks-style endpoint: the base URL on
// success, /start and /fail suffixes for the other phases.
type HealthcheckPinger struct {
	URL    string
	Client *http.Client
}

func (h *HealthcheckPinger) Notify(ctx context.Context, event Event) {
	if event.Outcome == OutcomeFail {
		h.Heartbeat(ctx, PhaseFail)
		return
	}
	h.Heartbeat(ctx, PhaseSuccess)
}

func (h *HealthcheckPinger) Heartbeat(ctx context.Context, phase Phase) {
	url := h.URL
	switch phase {
	case PhaseStart:
		url += "/start"
	case PhaseFail:
		url += "/fail"
	}

	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			lastErr = err
			break
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()
		if resp.StatusCode < 300 {
			return
		}
		lastErr = fmt.Errorf("heartbeat returned status %d", resp.StatusCode)
	}
	fmt.Printf("Warning: heartbeat ping failed: %v\n", lastErr)
}
