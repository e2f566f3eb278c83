package webhooks

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"fleetglobe/internal/metrics"
)

type delivery struct {
	ID        string
	EventType string
	Payload   []byte
	Attempts  int
}

// Worker POSTs queued events to one endpoint, retrying with exponential
// backoff until MaxAttempts is reached.
type Worker struct {
	URL         string
	Secret      string
	HTTP        *http.Client
	MaxAttempts int
	// Backoff returns the wait before retry number attempts (1-based).
	Backoff func(attempts int) time.Duration

	queue chan delivery
	log   *slog.Logger
}

func NewWorker(url, secret string, maxAttempts int, log *slog.Logger) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		URL:         url,
		Secret:      secret,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		MaxAttempts: maxAttempts,
		Backoff:     nextBackoff,
		queue:       make(chan delivery, 256),
		log:         log,
	}
}

// enqueue drops the delivery when the queue is full so the caller never blocks.
func (w *Worker) enqueue(d delivery) bool {
	select {
	case w.queue <- d:
		return true
	default:
		metrics.WebhookDeliveries.WithLabelValues(d.EventType, "dropped").Inc()
		w.log.Warn("webhook queue full, dropping event", "event", d.ID, "type", d.EventType)
		return false
	}
}

// Start drains the queue until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d := <-w.queue:
				w.process(ctx, d)
			}
		}
	}()
}

func (w *Worker) process(ctx context.Context, d delivery) {
	for {
		d.Attempts++
		code, err := w.send(ctx, d)
		if err == nil {
			return
		}
		if d.Attempts >= w.MaxAttempts {
			metrics.WebhookDeliveries.WithLabelValues(d.EventType, "failed").Inc()
			w.log.Error("webhook delivery failed", "event", d.ID, "attempts", d.Attempts, "code", code, "err", err)
			return
		}
		wait := w.Backoff(d.Attempts)
		w.log.Warn("webhook delivery retrying", "event", d.ID, "attempt", d.Attempts, "code", code, "in", wait, "err", err)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// send makes one attempt and reports the response code.
func (w *Worker) send(ctx context.Context, d delivery) (int, error) {
	rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(rctx, http.MethodPost, w.URL, bytes.NewReader(d.Payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", d.EventType)
	req.Header.Set("X-Event-ID", d.ID)
	if w.Secret != "" {
		req.Header.Set(SignatureHeader, SignHMAC(w.Secret, d.Payload))
	}
	start := time.Now()
	resp, err := w.HTTP.Do(req)
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.WebhookDeliveries.WithLabelValues(d.EventType, "error").Inc()
		metrics.WebhookLatency.WithLabelValues(d.EventType, "error").Observe(latency)
		return 0, err
	}
	_ = resp.Body.Close()
	status := "success"
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		status = "retry"
	}
	metrics.WebhookDeliveries.WithLabelValues(d.EventType, status).Inc()
	metrics.WebhookLatency.WithLabelValues(d.EventType, status).Observe(latency)
	if status != "success" {
		return resp.StatusCode, fmt.Errorf("webhook: HTTP %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
