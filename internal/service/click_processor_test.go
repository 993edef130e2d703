package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SergeiKhy/shuffle/internal/models"
	"github.com/SergeiKhy/shuffle/internal/service"
	"github.com/SergeiKhy/shuffle/internal/service/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestClickProcessor_RecordsClicks проверяет запись кликов воркерами
func TestClickProcessor_RecordsClicks(t *testing.T) {
	clickRepo := mocks.NewMockClickRepository()
	processor := service.NewClickProcessor(clickRepo, zap.NewNop())
	processor.Start()

	for i := 0; i < 5; i++ {
		err := processor.RecordClick(context.Background(), &models.ClickRequest{
			LinkID:    "promo-ab12",
			UserAgent: "Mozilla/5.0",
			Referrer:  "https://ref.example",
		})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return len(clickRepo.Recorded()) == 5
	}, 2*time.Second, 10*time.Millisecond)
	processor.Stop()

	ids := make(map[string]bool)
	for _, e := range clickRepo.Recorded() {
		_, err := uuid.Parse(e.ID)
		assert.NoError(t, err)
		assert.Equal(t, "promo-ab12", e.LinkID)
		assert.Equal(t, "https://ref.example", e.Referrer)
		assert.WithinDuration(t, time.Now(), e.ClickedAt, time.Minute)
		ids[e.ID] = true
	}
	assert.Len(t, ids, 5)
}

// TestClickProcessor_Retry проверяет повторную запись после временной ошибки
func TestClickProcessor_Retry(t *testing.T) {
	clickRepo := mocks.NewMockClickRepository()
	clickRepo.RecordErrs = []error{errors.New("deadlock detected"), errors.New("deadlock detected")}

	processor := service.NewClickProcessor(clickRepo, zap.NewNop())
	processor.Start()
	defer processor.Stop()

	require.NoError(t, processor.RecordClick(context.Background(), &models.ClickRequest{LinkID: "a"}))

	require.Eventually(t, func() bool {
		return len(clickRepo.Recorded()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

// TestClickProcessor_DrainOnStop проверяет, что клики из буфера дописываются при остановке
func TestClickProcessor_DrainOnStop(t *testing.T) {
	clickRepo := mocks.NewMockClickRepository()
	processor := service.NewClickProcessor(clickRepo, nil)

	// До Start события остаются в буфере
	for i := 0; i < 3; i++ {
		require.NoError(t, processor.RecordClick(context.Background(), &models.ClickRequest{LinkID: "a"}))
	}
	assert.Equal(t, 3, processor.Stats().BufferUsed)

	processor.Start()
	processor.Stop()

	assert.Len(t, clickRepo.Recorded(), 3)
	assert.Equal(t, 0, processor.Stats().BufferUsed)
}

// TestClickProcessor_Stats проверяет параметры пула
func TestClickProcessor_Stats(t *testing.T) {
	processor := service.NewClickProcessor(mocks.NewMockClickRepository(), nil)

	stats := processor.Stats()
	assert.Equal(t, 1000, stats.BufferSize)
	assert.Equal(t, 3, stats.WorkerCount)
	assert.Equal(t, 0, stats.BufferUsed)
}

// TestClickProcessor_DropsWhenFull проверяет, что при заполненном буфере клик теряется без блокировки
func TestClickProcessor_DropsWhenFull(t *testing.T) {
	processor := service.NewClickProcessor(mocks.NewMockClickRepository(), nil)

	for i := 0; i < 1005; i++ {
		require.NoError(t, processor.RecordClick(context.Background(), &models.ClickRequest{LinkID: "a"}))
	}
	assert.Equal(t, 1000, processor.Stats().BufferUsed)
}
