package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SergeiKhy/shuffle/internal/models"
	"github.com/SergeiKhy/shuffle/internal/repository"
	"github.com/SergeiKhy/shuffle/internal/service"
	"github.com/SergeiKhy/shuffle/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const pixelSnippet = `<script>ttq.load('PIXEL42');ttq.page();</script>`

// setupRedirect создаёт сервис редиректа с одной ссылкой "promo-ab12"
func setupRedirect(tracker service.PixelTracker, timeout time.Duration) (service.RedirectService, *mocks.MockLinkRepository, *mocks.MockClickProcessor) {
	linkRepo := mocks.NewMockLinkRepository()
	linkRepo.Add(models.Link{
		ID:              "promo-ab12",
		AffiliateURL:    "https://shop.example/item",
		PixelCode:       pixelSnippet,
		CompletePayment: true,
	})
	links := service.NewLinkService(linkRepo, mocks.NewMockCacheRepository(), zap.NewNop())
	clicks := mocks.NewMockClickProcessor()

	return service.NewRedirectService(links, clicks, tracker, timeout, zap.NewNop()), linkRepo, clicks
}

func clickRequest(id string) *models.ClickRequest {
	return &models.ClickRequest{LinkID: id, IPAddress: "203.0.113.7", UserAgent: "Mozilla/5.0 (iPhone)", Referrer: "https://tiktok.com"}
}

// TestRedirectService_Resolve проверяет успешное разрешение, события пикселя и запись клика
func TestRedirectService_Resolve(t *testing.T) {
	tracker := &mocks.MockPixelTracker{}
	redirect, _, clicks := setupRedirect(tracker, time.Second)

	link, err := redirect.Resolve(context.Background(), clickRequest("promo-ab12"))
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/item", link.AffiliateURL)

	events := tracker.Events()
	require.Len(t, events, 2)
	assert.Equal(t, service.PixelEventClickButton, events[0].Event)
	assert.Equal(t, service.PixelEventCompletePayment, events[1].Event)
	assert.Equal(t, "PIXEL42", events[0].PixelID)
	assert.Equal(t, "203.0.113.7", events[0].IPAddress)

	requests := clicks.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "promo-ab12", requests[0].LinkID)
}

// TestRedirectService_TrackerFailure проверяет, что ошибка трекинга не отменяет редирект
func TestRedirectService_TrackerFailure(t *testing.T) {
	tracker := &mocks.MockPixelTracker{Err: errors.New("pixel endpoint returned 503")}
	redirect, _, clicks := setupRedirect(tracker, time.Second)

	link, err := redirect.Resolve(context.Background(), clickRequest("promo-ab12"))
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/item", link.AffiliateURL)
	assert.Len(t, tracker.Events(), 1, "после ошибки остальные события не отправляются")
	assert.Len(t, clicks.Requests(), 1)
}

// TestRedirectService_TrackerTimeout проверяет, что зависший трекер ограничен таймаутом
func TestRedirectService_TrackerTimeout(t *testing.T) {
	tracker := mocks.PixelTrackerFunc(func(ctx context.Context, _ service.PixelEvent) error {
		<-ctx.Done()
		return ctx.Err()
	})
	redirect, _, clicks := setupRedirect(tracker, 50*time.Millisecond)

	start := time.Now()
	link, err := redirect.Resolve(context.Background(), clickRequest("promo-ab12"))
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example/item", link.AffiliateURL)
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, clicks.Requests(), 1)
}

// TestRedirectService_TrackerIgnoresContext проверяет, что трекер, игнорирующий ctx, не блокирует редирект
func TestRedirectService_TrackerIgnoresContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	tracker := mocks.PixelTrackerFunc(func(context.Context, service.PixelEvent) error {
		<-release
		return nil
	})
	redirect, _, _ := setupRedirect(tracker, 50*time.Millisecond)

	start := time.Now()
	link, err := redirect.Resolve(context.Background(), clickRequest("promo-ab12"))
	require.NoError(t, err)
	assert.NotNil(t, link)
	assert.Less(t, time.Since(start), time.Second)
}

// TestRedirectService_ClickQueueFailure проверяет, что сбой очереди кликов не отменяет редирект
func TestRedirectService_ClickQueueFailure(t *testing.T) {
	redirect, _, clicks := setupRedirect(&mocks.MockPixelTracker{}, time.Second)
	clicks.RecordErr = context.Canceled

	link, err := redirect.Resolve(context.Background(), clickRequest("promo-ab12"))
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/item", link.AffiliateURL)
}

// TestRedirectService_NoPixel проверяет, что без пикселя события не отправляются
func TestRedirectService_NoPixel(t *testing.T) {
	tracker := &mocks.MockPixelTracker{}
	redirect, linkRepo, clicks := setupRedirect(tracker, time.Second)
	linkRepo.Add(models.Link{ID: "plain-0000", AffiliateURL: "https://plain.example"})

	link, err := redirect.Resolve(context.Background(), clickRequest("plain-0000"))
	require.NoError(t, err)
	assert.Equal(t, "https://plain.example", link.AffiliateURL)
	assert.Empty(t, tracker.Events())
	assert.Len(t, clicks.Requests(), 1)
}

// TestRedirectService_NotFound проверяет, что для неизвестной ссылки клик не пишется
func TestRedirectService_NotFound(t *testing.T) {
	tracker := &mocks.MockPixelTracker{}
	redirect, _, clicks := setupRedirect(tracker, time.Second)

	link, err := redirect.Resolve(context.Background(), clickRequest("missing"))
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
	assert.Nil(t, link)
	assert.Empty(t, tracker.Events())
	assert.Empty(t, clicks.Requests())
}
