package handler

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/SergeiKhy/shuffle/internal/models"
	"github.com/SergeiKhy/shuffle/internal/repository"
	"github.com/SergeiKhy/shuffle/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Templates HTML шаблоны страницы пикселя и страницы 404
var Templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

const landingDelay = 800 * time.Millisecond

type RedirectHandler struct {
	redirect     service.RedirectService
	links        service.LinkService
	clicks       service.ClickProcessor
	fallbackPath string
	logger       *zap.Logger
}

func NewRedirectHandler(
	redirect service.RedirectService,
	links service.LinkService,
	clicks service.ClickProcessor,
	fallbackPath string,
	logger *zap.Logger,
) *RedirectHandler {
	if fallbackPath == "" {
		fallbackPath = "/"
	}
	return &RedirectHandler{
		redirect:     redirect,
		links:        links,
		clicks:       clicks,
		fallbackPath: fallbackPath,
		logger:       logger,
	}
}

type landingPage struct {
	LinkID          string
	Destination     string
	PixelCode       template.HTML
	CompletePayment bool
	DelayMillis     int64
	DelaySeconds    int64
}

func clickRequest(c *gin.Context, id string) *models.ClickRequest {
	return &models.ClickRequest{
		LinkID:    id,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
	}
}

// Redirect godoc
// @Summary Redirect to the affiliate URL
// @Description Sends pixel events, records the click and redirects. Failures redirect to the fallback path.
// @Tags redirect
// @Param code path string true "Link id"
// @Success 302 {object} nil
// @Router /{code} [get]
func (h *RedirectHandler) Redirect(c *gin.Context) {
	h.resolve(c, c.Param("code"))
}

// RedirectQuery godoc
// @Summary Redirect to the affiliate URL by query parameter
// @Tags redirect
// @Param id query string true "Link id"
// @Success 302 {object} nil
// @Router /r [get]
func (h *RedirectHandler) RedirectQuery(c *gin.Context) {
	h.resolve(c, c.Query("id"))
}

func (h *RedirectHandler) resolve(c *gin.Context, id string) {
	if id == "" {
		c.Redirect(http.StatusFound, h.fallbackPath)
		return
	}

	link, err := h.redirect.Resolve(c.Request.Context(), clickRequest(c, id))
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			h.logger.Info("Link not found", zap.String("id", id))
		} else {
			h.logger.Error("Failed to resolve link", zap.String("id", id), zap.Error(err))
		}
		c.Redirect(http.StatusFound, h.fallbackPath)
		return
	}

	c.Redirect(http.StatusFound, link.AffiliateURL)
}

// Landing godoc
// @Summary Pixel landing page
// @Description HTML page that loads the stored pixel snippet and forwards to the affiliate URL
// @Tags redirect
// @Produce html
// @Param code path string true "Link id"
// @Success 200 {string} string "HTML page"
// @Failure 404 {string} string "HTML page"
// @Router /p/{code} [get]
func (h *RedirectHandler) Landing(c *gin.Context) {
	code := c.Param("code")

	link, err := h.links.GetLink(c.Request.Context(), code)
	if err != nil {
		if !errors.Is(err, repository.ErrLinkNotFound) {
			h.logger.Error("Failed to load link for landing page", zap.String("id", code), zap.Error(err))
		}
		c.HTML(http.StatusNotFound, "not_found.html", gin.H{"Code": code})
		return
	}

	// Страница сама отправляет события пикселя в браузере, сервер только пишет клик
	if err := h.clicks.RecordClick(c.Request.Context(), clickRequest(c, link.ID)); err != nil {
		h.logger.Debug("Failed to record click (non-blocking)", zap.Error(err))
	}

	c.HTML(http.StatusOK, "landing.html", landingPage{
		LinkID:          link.ID,
		Destination:     link.AffiliateURL,
		PixelCode:       template.HTML(link.PixelCode),
		CompletePayment: link.CompletePayment,
		DelayMillis:     landingDelay.Milliseconds(),
		DelaySeconds:    1,
	})
}
