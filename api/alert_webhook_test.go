package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func spike(count int) AlertEvent {
	return AlertEvent{
		Type:      AlertLoginFailureSpike,
		Message:   "login failure rate exceeds threshold",
		Count:     count,
		Threshold: defaultLoginFailureThreshold,
		Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestWebhookAlerter_Delivers(t *testing.T) {
	var mu sync.Mutex
	var body []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		body, _ = io.ReadAll(r.Body)
		mu.Unlock()
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhookAlerter(srv.URL, discardLogger())
	wh.Alert(spike(60))
	wh.Close()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, body)

	var got AlertEvent
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, AlertLoginFailureSpike, got.Type)
	assert.Equal(t, 60, got.Count)
	assert.Equal(t, defaultLoginFailureThreshold, got.Threshold)
}

func TestWebhookAlerter_RetriesOn500(t *testing.T) {
	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhookAlerter(srv.URL, discardLogger())
	wh.Alert(spike(55))
	wh.Close()

	assert.Equal(t, int32(2), attempts.Load())
}

func TestWebhookAlerter_NoRetryOn400(t *testing.T) {
	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	wh := NewWebhookAlerter(srv.URL, discardLogger())
	wh.Alert(spike(55))
	wh.Close()

	assert.Equal(t, int32(1), attempts.Load())
}

func TestWebhookAlerter_FullQueueDoesNotBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {} // slow consumer
	}))
	defer srv.Close()

	wh := &WebhookAlerter{
		url:    srv.URL,
		client: &http.Client{Timeout: 100 * time.Millisecond},
		logger: discardLogger(),
		alerts: make(chan AlertEvent, 2),
	}
	wh.wg.Add(1)
	go wh.loop()

	// Flooding past the buffer must drop, not block the caller.
	for i := 0; i < 10; i++ {
		wh.Alert(spike(50 + i))
	}
	close(wh.alerts)
}

func TestWebhookAlerter_CloseDrainsQueue(t *testing.T) {
	var count atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhookAlerter(srv.URL, discardLogger())
	for i := 0; i < 5; i++ {
		wh.Alert(spike(50 + i))
	}
	wh.Close()

	assert.Equal(t, int32(5), count.Load())
}
