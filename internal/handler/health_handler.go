package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/SergeiKhy/shuffle/internal/service"
	"github.com/gin-gonic/gin"
)

// Pinger хранилище, доступность которого проверяет health check
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	stores map[string]Pinger
	clicks service.ClickProcessor
}

func NewHealthHandler(stores map[string]Pinger, clicks service.ClickProcessor) *HealthHandler {
	return &HealthHandler{stores: stores, clicks: clicks}
}

type HealthResponse struct {
	Status string                `json:"status"`
	Stores map[string]string     `json:"stores"`
	Clicks *service.ChannelStats `json:"clicks,omitempty"`
}

// Health godoc
// @Summary Health check
// @Description Liveness with a ping of every store
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /api/v1/health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.stores))
	for name := range h.stores {
		names = append(names, name)
	}
	sort.Strings(names)

	response := HealthResponse{Status: "ok", Stores: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		if err := h.stores[name].Ping(ctx); err != nil {
			response.Stores[name] = err.Error()
			response.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		response.Stores[name] = "ok"
	}

	if h.clicks != nil {
		stats := h.clicks.Stats()
		response.Clicks = &stats
	}

	c.JSON(status, response)
}
