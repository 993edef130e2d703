package service_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SergeiKhy/shuffle/internal/config"
	"github.com/SergeiKhy/shuffle/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testEvent() service.PixelEvent {
	return service.PixelEvent{
		PixelID:   "PIXEL42",
		Event:     service.PixelEventClickButton,
		EventID:   "evt-1",
		Timestamp: time.Date(2024, 3, 15, 3, 0, 0, 0, time.UTC),
		LinkID:    "promo-ab12",
		URL:       "https://shop.example/item",
	}
}

// TestPixelTracker_RetriesUntilSuccess проверяет повтор после ответа 5xx
func TestPixelTracker_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-token", r.Header.Get("Access-Token"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var event service.PixelEvent
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&event))
		assert.Equal(t, "PIXEL42", event.PixelID)

		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tracker := service.NewPixelTracker(config.PixelConfig{
		EventsEndpoint: server.URL,
		AccessToken:    "secret-token",
		Timeout:        time.Second,
		MaxAttempts:    3,
	}, zap.NewNop())

	require.NoError(t, tracker.Track(context.Background(), testEvent()))
	assert.Equal(t, int32(2), calls.Load())
}

// TestPixelTracker_GivesUp проверяет ошибку после исчерпания попыток
func TestPixelTracker_GivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	tracker := service.NewPixelTracker(config.PixelConfig{
		EventsEndpoint: server.URL,
		Timeout:        time.Second,
		MaxAttempts:    2,
	}, nil)

	err := tracker.Track(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(2), calls.Load())
}

// TestPixelTracker_ContextCancel проверяет, что отменённый ctx прерывает отправку
func TestPixelTracker_ContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	tracker := service.NewPixelTracker(config.PixelConfig{
		EventsEndpoint: server.URL,
		Timeout:        5 * time.Second,
		MaxAttempts:    1,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	assert.Error(t, tracker.Track(ctx, testEvent()))
	assert.Less(t, time.Since(start), time.Second)
}

// TestPixelTracker_Noop проверяет, что без endpoint события не отправляются
func TestPixelTracker_Noop(t *testing.T) {
	tracker := service.NewPixelTracker(config.PixelConfig{}, nil)
	assert.NoError(t, tracker.Track(context.Background(), testEvent()))
}
