package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SergeiKhy/shuffle/internal/analytics"
	"github.com/SergeiKhy/shuffle/internal/config"
	"github.com/SergeiKhy/shuffle/internal/handler"
	"github.com/SergeiKhy/shuffle/internal/middleware"
	"github.com/SergeiKhy/shuffle/internal/models"
	"github.com/SergeiKhy/shuffle/internal/service"
	"github.com/SergeiKhy/shuffle/internal/service/mocks"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testBaseURL  = "https://s.example"
	fallbackPath = "/fallback"
	pixelSnippet = `<script>ttq.load('PIXEL42');ttq.page();</script>`
)

var (
	jst      = time.FixedZone("JST", 9*3600)
	fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, jst)
)

type testEnv struct {
	router   *gin.Engine
	links    *mocks.MockLinkRepository
	clicks   *mocks.MockClickRepository
	queue    *mocks.MockClickProcessor
	tracker  *mocks.MockPixelTracker
	auth     service.AuthService
	adminKey string
}

type envOptions struct {
	apiKeys map[string]string
	auth    service.AuthService
	stores  map[string]handler.Pinger
	origins []string
}

// setupTestEnv собирает роутер поверх моковых хранилищ с фиксированным временем
func setupTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	linkRepo := mocks.NewMockLinkRepository()
	linkRepo.Add(
		models.Link{
			ID:              "promo-ab12",
			AffiliateURL:    "https://shop.example/item",
			PixelCode:       pixelSnippet,
			CompletePayment: true,
			CreatedAt:       fixedNow.Add(-48 * time.Hour),
		},
		models.Link{
			ID:           "news-cd34",
			AffiliateURL: "https://news.example/",
			CreatedAt:    fixedNow.Add(-24 * time.Hour),
		},
	)

	clickRepo := mocks.NewMockClickRepository()
	clickRepo.AddDefault(
		models.ClickEvent{ID: "1", LinkID: "promo-ab12", ClickedAt: fixedNow.Add(-time.Hour)},
		models.ClickEvent{ID: "2", LinkID: "promo-ab12", ClickedAt: fixedNow.Add(-2 * time.Hour)},
		models.ClickEvent{ID: "3", LinkID: "news-cd34", ClickedAt: fixedNow.Add(-10 * 24 * time.Hour)},
	)
	clickRepo.AddPartition("click_logs_y2024m03",
		models.ClickEvent{ID: "1", LinkID: "promo-ab12", ClickedAt: fixedNow.Add(-time.Hour)},
		models.ClickEvent{ID: "4", LinkID: "gone-0000", ClickedAt: fixedNow.Add(-3 * time.Hour)},
	)

	queue := mocks.NewMockClickProcessor()
	tracker := &mocks.MockPixelTracker{}

	linkService := service.NewLinkService(linkRepo, mocks.NewMockCacheRepository(), logger)
	redirectService := service.NewRedirectService(linkService, queue, tracker, time.Second, logger)

	engine := analytics.NewEngine(linkRepo, clickRepo, analytics.Options{
		BaseURL:          testBaseURL,
		Location:         jst,
		FetchTimeout:     time.Second,
		FetchConcurrency: 2,
		Now:              func() time.Time { return fixedNow },
	}, logger)

	auth := opts.auth
	if auth == nil {
		auth = service.NewAuthService(config.AuthConfig{})
	}

	router := handler.NewRouter(handler.RouterConfig{
		Links:     handler.NewLinkHandler(linkService, testBaseURL, logger),
		Redirects: handler.NewRedirectHandler(redirectService, linkService, queue, fallbackPath, logger),
		Dashboard: handler.NewDashboardHandler(engine, logger),
		Auth:      handler.NewAuthHandler(auth, logger),
		Health:    handler.NewHealthHandler(opts.stores, queue),
		AdminAuth: middleware.NewAdminAuth(middleware.AdminAuthConfig{
			APIKeys: opts.apiKeys,
			Tokens:  auth,
			Logger:  logger,
		}),
		CORSOrigins: opts.origins,
		Logger:      logger,
	})

	env := &testEnv{
		router:  router,
		links:   linkRepo,
		clicks:  clickRepo,
		queue:   queue,
		tracker: tracker,
		auth:    auth,
	}
	for key := range opts.apiKeys {
		env.adminKey = key
	}
	return env
}

func (e *testEnv) do(method, target string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if e.adminKey != "" {
		req.Header.Set("X-API-Key", e.adminKey)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }
