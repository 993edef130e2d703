package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/SergeiKhy/shuffle/internal/analytics"
	"github.com/SergeiKhy/shuffle/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const exportKindSearch = "search"

type DashboardHandler struct {
	engine *analytics.Engine
	logger *zap.Logger
}

func NewDashboardHandler(engine *analytics.Engine, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		engine: engine,
		logger: logger,
	}
}

// RankingView рейтинг окна с постраничной выдачей
type RankingView struct {
	Window      analytics.WindowKind                `json:"window"`
	From        string                              `json:"from,omitempty"`
	To          string                              `json:"to,omitempty"`
	TotalClicks int                                 `json:"total_clicks"`
	Entries     analytics.Page[models.RankingEntry] `json:"entries"`
}

type StatsResponse struct {
	GeneratedAt       time.Time     `json:"generated_at"`
	TotalClicks       int           `json:"total_clicks"`
	LinkCount         int           `json:"link_count"`
	Partitions        []string      `json:"partitions"`
	SkippedPartitions []string      `json:"skipped_partitions,omitempty"`
	Rankings          []RankingView `json:"rankings"`
}

type SearchResponse struct {
	Field   models.SearchField                `json:"field"`
	Query   string                            `json:"query"`
	Active  bool                              `json:"active"`
	Results *analytics.Page[models.SearchRow] `json:"results,omitempty"`
}

// Stats godoc
// @Summary Click rankings
// @Description Rankings for daily, weekly, monthly and allTime windows, plus customRange when start and end are given
// @Tags dashboard
// @Produce json
// @Param start query string false "Custom range start, YYYY-MM-DD"
// @Param end query string false "Custom range end, YYYY-MM-DD"
// @Param window query string false "Window to page through"
// @Param page query int false "Page of the selected window" default(1)
// @Success 200 {object} StatsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/v1/dashboard/stats [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	custom, ok := h.customRange(c)
	if !ok {
		return
	}

	selected := analytics.WindowKind(c.Query("window"))
	if selected != "" && !h.knownWindow(selected, custom != nil) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_window",
			Message: fmt.Sprintf("unknown window %q", selected),
		})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	report, err := h.engine.LoadAndAggregate(c.Request.Context(), custom)
	if err != nil {
		h.writeError(c, "Failed to build rankings", err)
		return
	}

	response := StatsResponse{
		GeneratedAt:       report.GeneratedAt,
		TotalClicks:       report.TotalClicks,
		LinkCount:         report.LinkCount,
		Partitions:        report.Partitions,
		SkippedPartitions: report.SkippedPartitions,
	}
	for _, ranking := range report.Rankings {
		p := 1
		if ranking.Window == selected {
			p = page
		}
		view := RankingView{
			Window:      ranking.Window,
			TotalClicks: ranking.TotalClicks,
			Entries:     analytics.Paginate(ranking.Entries, p, analytics.DefaultPerPage),
		}
		if ranking.From != nil {
			view.From = ranking.From.Format(analytics.DateLayout)
		}
		if ranking.To != nil {
			view.To = ranking.To.Format(analytics.DateLayout)
		}
		response.Rankings = append(response.Rankings, view)
	}

	c.JSON(http.StatusOK, response)
}

// Search godoc
// @Summary Search the click log
// @Description linkId and targetUrl match substrings case-insensitively, count matches all-time totals exactly
// @Tags dashboard
// @Produce json
// @Param field query string true "linkId | targetUrl | count"
// @Param q query string false "Query"
// @Param page query int false "Page number" default(1)
// @Success 200 {object} SearchResponse
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/v1/dashboard/search [get]
func (h *DashboardHandler) Search(c *gin.Context) {
	field := models.SearchField(c.Query("field"))
	query := c.Query("q")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	rows, err := h.engine.Search(c.Request.Context(), query, field)
	if err != nil {
		h.writeError(c, "Failed to search clicks", err)
		return
	}

	response := SearchResponse{Field: field, Query: query}
	if rows != nil {
		results := analytics.Paginate(rows, page, analytics.DefaultPerPage)
		response.Active = true
		response.Results = &results
	}

	c.JSON(http.StatusOK, response)
}

// Export godoc
// @Summary CSV export
// @Description Exports a ranking window or search results as a CSV attachment
// @Tags dashboard
// @Produce text/csv
// @Param kind query string true "daily | weekly | monthly | allTime | customRange | search"
// @Param start query string false "customRange start, YYYY-MM-DD"
// @Param end query string false "customRange end, YYYY-MM-DD"
// @Param field query string false "Search field"
// @Param q query string false "Search query"
// @Success 200 {string} string "CSV file"
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/v1/dashboard/export [get]
func (h *DashboardHandler) Export(c *gin.Context) {
	kind := c.Query("kind")

	var (
		buf      bytes.Buffer
		filename string
	)

	switch {
	case kind == exportKindSearch:
		field := models.SearchField(c.Query("field"))
		query := c.Query("q")

		rows, err := h.engine.Search(c.Request.Context(), query, field)
		if err != nil {
			h.writeError(c, "Failed to search clicks", err)
			return
		}
		if err := analytics.WriteSearchCSV(&buf, rows); err != nil {
			h.writeError(c, "Failed to write CSV", err)
			return
		}
		filename = analytics.SearchFilename(h.engine.Now(), field, query)

	case analytics.WindowKind(kind) == analytics.WindowCustomRange:
		custom, ok := h.customRange(c)
		if !ok {
			return
		}
		if custom == nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_date_range",
				Message: "start and end are required for customRange",
			})
			return
		}
		if !h.exportRanking(c, &buf, analytics.WindowCustomRange, custom) {
			return
		}
		filename = analytics.CustomRangeFilename(h.engine.Now(), *custom)

	case h.knownWindow(analytics.WindowKind(kind), false):
		if !h.exportRanking(c, &buf, analytics.WindowKind(kind), nil) {
			return
		}
		filename = analytics.StatsFilename(h.engine.Now(), analytics.WindowKind(kind))

	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_kind",
			Message: fmt.Sprintf("unknown export kind %q", kind),
		})
		return
	}

	h.logger.Info("CSV exported", zap.String("kind", kind), zap.String("filename", filename))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *DashboardHandler) exportRanking(c *gin.Context, buf *bytes.Buffer, kind analytics.WindowKind, custom *analytics.TimeWindow) bool {
	report, err := h.engine.LoadAndAggregate(c.Request.Context(), custom)
	if err != nil {
		h.writeError(c, "Failed to build rankings", err)
		return false
	}

	ranking, _ := report.Ranking(kind)
	if err := analytics.WriteRankingCSV(buf, ranking.Entries); err != nil {
		h.writeError(c, "Failed to write CSV", err)
		return false
	}
	return true
}

// customRange разбирает start / end. Если оба пусты, возвращает nil.
func (h *DashboardHandler) customRange(c *gin.Context) (*analytics.TimeWindow, bool) {
	start, end := c.Query("start"), c.Query("end")
	if start == "" && end == "" {
		return nil, true
	}

	window, err := analytics.ParseCustomRange(start, end, h.engine.Location())
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_date_range",
			Message: err.Error(),
		})
		return nil, false
	}
	return &window, true
}

func (h *DashboardHandler) knownWindow(kind analytics.WindowKind, withCustom bool) bool {
	if kind == analytics.WindowCustomRange {
		return withCustom
	}
	_, ok := analytics.WindowFor(kind, h.engine.Now())
	return ok
}

// writeError отображает ошибки движка аналитики в HTTP статусы.
// Текст ошибки источника данных передаётся без изменений.
func (h *DashboardHandler) writeError(c *gin.Context, msg string, err error) {
	var fetchErr *analytics.DataFetchError
	switch {
	case errors.As(err, &fetchErr):
		h.logger.Error(msg, zap.String("source", fetchErr.Source), zap.Error(err))
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "data_fetch_failed",
			Message: fetchErr.Error(),
		})
	case errors.Is(err, analytics.ErrUnknownSearchField):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_field",
			Message: "field must be one of linkId, targetUrl, count",
		})
	default:
		h.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: msg,
		})
	}
}
