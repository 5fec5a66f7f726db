package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// webhookQueueSize is the bounded channel capacity for outbound audit events.
	webhookQueueSize  = 1024
	webhookRetryDelay = 1 * time.Second
	webhookUserAgent  = "adventkey-audit-webhook/1.0"
)

// webhookEvent is the JSON payload POSTed to the external endpoint.
type webhookEvent struct {
	Event      string            `json:"event"`
	RemoteAddr string            `json:"remote_addr,omitempty"`
	Timestamp  string            `json:"timestamp"`
	Attrs      map[string]string `json:"attrs,omitempty"`
}

// auditWebhook dispatches audit events to an external HTTP endpoint.
// Events are enqueued without blocking into a bounded channel and sent by a
// single background goroutine. When the channel is full, events are dropped.
type auditWebhook struct {
	url         string
	headerName  string
	headerValue string
	client      *http.Client
	retryDelay  time.Duration
	events      chan webhookEvent
	dropped     atomic.Int64
	wg          sync.WaitGroup
	closeOnce   sync.Once

	// mu guards closed against a concurrent send on events.
	mu     sync.RWMutex
	closed bool
}

// newAuditWebhook creates a webhook dispatcher and starts its background
// loop. authHeader uses "Name: Value" form, e.g. "Authorization: Bearer x".
func newAuditWebhook(url, authHeader string) *auditWebhook {
	w := &auditWebhook{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		retryDelay: webhookRetryDelay,
		events:     make(chan webhookEvent, webhookQueueSize),
	}
	if name, value, ok := strings.Cut(authHeader, ":"); ok {
		w.headerName = strings.TrimSpace(name)
		w.headerValue = strings.TrimSpace(value)
	}
	w.start()
	return w
}

func (w *auditWebhook) start() {
	w.wg.Add(1)
	go w.loop()
}

// enqueue adds an event to the dispatch queue. It never blocks. Events
// arriving after close are dropped.
func (w *auditWebhook) enqueue(evt webhookEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.dropped.Add(1)
		return
	}
	select {
	case w.events <- evt:
	default:
		w.dropped.Add(1)
		slog.Warn("audit webhook: queue full, dropping event", "event", evt.Event)
	}
}

// close stops accepting events and waits for queued ones to be sent.
func (w *auditWebhook) close() {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.events)
		w.mu.Unlock()
		w.wg.Wait()
	})
}

func (w *auditWebhook) loop() {
	defer w.wg.Done()
	for evt := range w.events {
		w.send(evt)
	}
}

// send POSTs the event with one retry on 5xx or transport errors.
func (w *auditWebhook) send(evt webhookEvent) {
	body, err := json.Marshal(evt)
	if err != nil {
		slog.Warn("audit webhook: marshal failed", "error", err)
		return
	}

	for attempt := 1; attempt <= 2; attempt++ {
		if attempt > 1 {
			time.Sleep(w.retryDelay)
		}
		retry, err := w.post(body)
		if err == nil {
			return
		}
		slog.Warn("audit webhook: delivery failed", "error", err, "attempt", attempt)
		if !retry {
			return
		}
	}
}

func (w *auditWebhook) post(body []byte) (retry bool, err error) {
	req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhookUserAgent)
	if w.headerName != "" {
		req.Header.Set(w.headerName, w.headerValue)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return true, err
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode >= 500:
		return true, &webhookStatusError{status: resp.StatusCode}
	default:
		return false, &webhookStatusError{status: resp.StatusCode}
	}
}

type webhookStatusError struct {
	status int
}

func (e *webhookStatusError) Error() string {
	return "unexpected status " + http.StatusText(e.status)
}
