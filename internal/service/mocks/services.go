package mocks

import (
	"context"
	"sync"

	"github.com/SergeiKhy/shuffle/internal/models"
	"github.com/SergeiKhy/shuffle/internal/service"
)

// MockClickProcessor implements service.ClickProcessor, keeping queued requests in memory
type MockClickProcessor struct {
	mu       sync.Mutex
	requests []models.ClickRequest

	// RecordErr is returned by RecordClick when set
	RecordErr error
}

func NewMockClickProcessor() *MockClickProcessor {
	return &MockClickProcessor{}
}

func (m *MockClickProcessor) Start() {}

func (m *MockClickProcessor) Stop() {}

func (m *MockClickProcessor) RecordClick(ctx context.Context, req *models.ClickRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.requests = append(m.requests, *req)
	return nil
}

func (m *MockClickProcessor) Stats() service.ChannelStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return service.ChannelStats{BufferSize: len(m.requests), BufferUsed: len(m.requests), WorkerCount: 1}
}

// Requests returns queued click requests
func (m *MockClickProcessor) Requests() []models.ClickRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ClickRequest(nil), m.requests...)
}

// PixelTrackerFunc adapts a function to service.PixelTracker
type PixelTrackerFunc func(ctx context.Context, event service.PixelEvent) error

func (f PixelTrackerFunc) Track(ctx context.Context, event service.PixelEvent) error {
	return f(ctx, event)
}

// MockPixelTracker records tracked events and returns Err for each of them
type MockPixelTracker struct {
	mu     sync.Mutex
	events []service.PixelEvent

	Err error
}

func (m *MockPixelTracker) Track(ctx context.Context, event service.PixelEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.Err
}

func (m *MockPixelTracker) Events() []service.PixelEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]service.PixelEvent(nil), m.events...)
}
