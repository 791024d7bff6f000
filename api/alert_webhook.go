package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// alertQueueSize bounds the channel of pending outbound alerts.
const alertQueueSize = 64

// WebhookAlerter delivers AlertEvents to an external HTTP endpoint, for
// deployments that want spike alerts in a chat channel or pager rather
// than only in the logs. Alerts are enqueued without blocking and sent
// by a background goroutine; when the queue is full new alerts are
// dropped, since a spike already produced earlier ones.
type WebhookAlerter struct {
	url    string
	client *http.Client
	logger *slog.Logger
	alerts chan AlertEvent
	wg     sync.WaitGroup
}

// NewWebhookAlerter starts the delivery loop for the given endpoint.
func NewWebhookAlerter(url string, logger *slog.Logger) *WebhookAlerter {
	w := &WebhookAlerter{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
		alerts: make(chan AlertEvent, alertQueueSize),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// Alert satisfies AlertFunc. It never blocks the caller.
func (w *WebhookAlerter) Alert(evt AlertEvent) {
	select {
	case w.alerts <- evt:
	default:
		w.logger.Warn("alert webhook queue full, dropping alert", "type", evt.Type)
	}
}

// Close drains and stops the delivery loop.
func (w *WebhookAlerter) Close() {
	close(w.alerts)
	w.wg.Wait()
}

func (w *WebhookAlerter) loop() {
	defer w.wg.Done()
	for evt := range w.alerts {
		w.send(evt)
	}
}

// send POSTs the alert with one retry on transport errors and 5xx.
func (w *WebhookAlerter) send(evt AlertEvent) {
	body, err := json.Marshal(evt)
	if err != nil {
		w.logger.Warn("alert webhook marshal failed", "error", err)
		return
	}

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Second)
		}

		req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			w.logger.Warn("alert webhook request failed", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			w.logger.Warn("alert webhook send failed", "error", err, "attempt", attempt+1)
			continue
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode < 300:
			return
		case resp.StatusCode >= 500:
			w.logger.Warn("alert webhook server error", "status", resp.StatusCode, "attempt", attempt+1)
		default:
			// 4xx is a configuration problem; retrying will not help.
			w.logger.Warn("alert webhook rejected", "status", resp.StatusCode)
			return
		}
	}
}
