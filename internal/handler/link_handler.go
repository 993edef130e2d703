package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/SergeiKhy/shuffle/internal/models"
	"github.com/SergeiKhy/shuffle/internal/repository"
	"github.com/SergeiKhy/shuffle/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LinkHandler struct {
	service service.LinkService
	baseURL string
	logger  *zap.Logger
}

func NewLinkHandler(service service.LinkService, baseURL string, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

type CreateLinkRequest struct {
	ShortID         string `json:"short_id" binding:"required"`
	AffiliateURL    string `json:"affiliate_url" binding:"required"`
	PixelCode       string `json:"pixel_code,omitempty"`
	CompletePayment bool   `json:"complete_payment"`
}

type UpdateLinkRequest struct {
	AffiliateURL    *string `json:"affiliate_url,omitempty"`
	PixelCode       *string `json:"pixel_code,omitempty"`
	CompletePayment *bool   `json:"complete_payment,omitempty"`
}

type LinkResponse struct {
	ID              string    `json:"id"`
	ShortURL        string    `json:"short_url"`
	AffiliateURL    string    `json:"affiliate_url"`
	PixelCode       string    `json:"pixel_code,omitempty"`
	CompletePayment bool      `json:"complete_payment"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type LinkListResponse struct {
	Links      []LinkResponse `json:"links"`
	Page       int            `json:"page"`
	PerPage    int            `json:"per_page"`
	TotalPages int            `json:"total_pages"`
	TotalItems int            `json:"total_items"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *LinkHandler) toResponse(link *models.Link) LinkResponse {
	return LinkResponse{
		ID:              link.ID,
		ShortURL:        h.baseURL + "/" + link.ID,
		AffiliateURL:    link.AffiliateURL,
		PixelCode:       link.PixelCode,
		CompletePayment: link.CompletePayment,
		CreatedAt:       link.CreatedAt,
		UpdatedAt:       link.UpdatedAt,
	}
}

// ListLinks godoc
// @Summary List links
// @Description Paged list of links, 10 per page
// @Tags links
// @Produce json
// @Param sort query string false "created_at | id | affiliate_url" default(created_at)
// @Param dir query string false "asc | desc" default(desc)
// @Param q query string false "Case-insensitive id filter"
// @Param page query int false "Page number" default(1)
// @Success 200 {object} LinkListResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/links [get]
func (h *LinkHandler) ListLinks(c *gin.Context) {
	opts := models.LinkListOptions{SortField: models.SortByCreatedAt}
	switch sort := models.LinkSortField(c.DefaultQuery("sort", string(models.SortByCreatedAt))); sort {
	case models.SortByCreatedAt, models.SortByID, models.SortByAffiliateURL:
		opts.SortField = sort
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_sort",
			Message: "sort must be one of created_at, id, affiliate_url",
		})
		return
	}
	opts.Ascending = strings.EqualFold(c.Query("dir"), "asc")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	result, err := h.service.ListLinks(c.Request.Context(), opts, c.Query("q"), page)
	if err != nil {
		h.logger.Error("Failed to list links", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to list links",
		})
		return
	}

	response := LinkListResponse{
		Links:      make([]LinkResponse, 0, len(result.Links)),
		Page:       result.Page,
		PerPage:    result.PerPage,
		TotalPages: result.TotalPages,
		TotalItems: result.TotalItems,
	}
	for i := range result.Links {
		response.Links = append(response.Links, h.toResponse(&result.Links[i]))
	}

	c.JSON(http.StatusOK, response)
}

// CreateLink godoc
// @Summary Create a short link
// @Description Create a link with id <short_id>-<4 random chars>
// @Tags links
// @Accept json
// @Produce json
// @Param request body CreateLinkRequest true "Link creation request"
// @Success 201 {object} LinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/links [post]
func (h *LinkHandler) CreateLink(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	link, err := h.service.CreateLink(c.Request.Context(), &models.CreateLinkInput{
		ShortID:         req.ShortID,
		AffiliateURL:    req.AffiliateURL,
		PixelCode:       req.PixelCode,
		CompletePayment: req.CompletePayment,
	})
	if err != nil {
		h.writeError(c, "Failed to create link", err)
		return
	}

	h.logger.Info("Link created", zap.String("id", link.ID))
	c.JSON(http.StatusCreated, h.toResponse(link))
}

// GetLink godoc
// @Summary Get a link
// @Tags links
// @Produce json
// @Param id path string true "Link id"
// @Success 200 {object} LinkResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{id} [get]
func (h *LinkHandler) GetLink(c *gin.Context) {
	link, err := h.service.GetLink(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "Failed to get link", err)
		return
	}

	c.JSON(http.StatusOK, h.toResponse(link))
}

// UpdateLink godoc
// @Summary Update a link
// @Description Update destination, pixel snippet or CompletePayment flag
// @Tags links
// @Accept json
// @Produce json
// @Param id path string true "Link id"
// @Param request body UpdateLinkRequest true "Fields to update"
// @Success 200 {object} LinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{id} [put]
func (h *LinkHandler) UpdateLink(c *gin.Context) {
	var req UpdateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	link, err := h.service.UpdateLink(c.Request.Context(), c.Param("id"), &models.UpdateLinkInput{
		AffiliateURL:    req.AffiliateURL,
		PixelCode:       req.PixelCode,
		CompletePayment: req.CompletePayment,
	})
	if err != nil {
		h.writeError(c, "Failed to update link", err)
		return
	}

	c.JSON(http.StatusOK, h.toResponse(link))
}

// DeleteLink godoc
// @Summary Delete a link
// @Tags links
// @Produce json
// @Param id path string true "Link id"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{id} [delete]
func (h *LinkHandler) DeleteLink(c *gin.Context) {
	id := c.Param("id")

	if err := h.service.DeleteLink(c.Request.Context(), id); err != nil {
		h.writeError(c, "Failed to delete link", err)
		return
	}

	h.logger.Info("Link deleted", zap.String("id", id))
	c.JSON(http.StatusOK, gin.H{"message": "Link deleted successfully"})
}

// DiagnosePixel godoc
// @Summary Pixel snippet diagnostics
// @Description Checks the stored TikTok pixel snippet of a link
// @Tags links
// @Produce json
// @Param id path string true "Link id"
// @Success 200 {object} models.PixelDiagnostics
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{id}/pixel [get]
func (h *LinkHandler) DiagnosePixel(c *gin.Context) {
	diag, err := h.service.DiagnosePixel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "Failed to diagnose pixel", err)
		return
	}

	c.JSON(http.StatusOK, diag)
}

// writeError отображает ошибки сервиса ссылок в HTTP статусы
func (h *LinkHandler) writeError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, repository.ErrLinkNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Link not found",
		})
	case errors.Is(err, service.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_url",
			Message: "affiliate_url must be an absolute http(s) URL",
		})
	case errors.Is(err, service.ErrInvalidShortID):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_short_id",
			Message: "short_id must be 2-40 characters of a-z, A-Z, 0-9, '_' or '-'",
		})
	default:
		h.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: msg,
		})
	}
}
