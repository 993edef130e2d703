package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/SergeiKhy/shuffle/internal/models"
	"github.com/SergeiKhy/shuffle/internal/repository"
	"go.uber.org/zap"
)

// Ошибки сервиса
var (
	ErrInvalidURL     = errors.New("невалидный URL")
	ErrInvalidShortID = errors.New("невалидный короткий идентификатор")
)

// Константы сервиса
const (
	cacheTTL      = 24 * time.Hour
	suffixLength  = 4
	suffixCharset = "abcdefghijklmnopqrstuvwxyz0123456789"
	maxCreateTry  = 5
	LinksPerPage  = 10
)

var shortIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{2,40}$`)

// LinkService интерфейс сервиса ссылок
type LinkService interface {
	CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error)
	UpdateLink(ctx context.Context, id string, input *models.UpdateLinkInput) (*models.Link, error)
	GetLink(ctx context.Context, id string) (*models.Link, error)
	DeleteLink(ctx context.Context, id string) error
	ListLinks(ctx context.Context, opts models.LinkListOptions, query string, page int) (*models.LinkPage, error)
	DiagnosePixel(ctx context.Context, id string) (*models.PixelDiagnostics, error)
}

// linkService реализация сервиса ссылок
type linkService struct {
	linkRepo  repository.LinkRepository
	cacheRepo repository.CacheRepository
	logger    *zap.Logger
}

// NewLinkService создаёт новый экземпляр сервиса
func NewLinkService(linkRepo repository.LinkRepository, cacheRepo repository.CacheRepository, logger *zap.Logger) LinkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &linkService{
		linkRepo:  linkRepo,
		cacheRepo: cacheRepo,
		logger:    logger,
	}
}

// CreateLink создаёт ссылку с идентификатором вида <shortId>-<4 случайных символа>
func (s *linkService) CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error) {
	shortID := strings.TrimSpace(input.ShortID)
	if !shortIDPattern.MatchString(shortID) {
		return nil, ErrInvalidShortID
	}

	affiliateURL := strings.TrimSpace(input.AffiliateURL)
	if err := validateURL(affiliateURL); err != nil {
		return nil, err
	}

	// Upsert перезаписывает существующую ссылку, поэтому подбираем свободный суффикс
	var id string
	for i := 0; i < maxCreateTry; i++ {
		suffix, err := generateSuffix()
		if err != nil {
			return nil, fmt.Errorf("failed to generate suffix: %w", err)
		}
		candidate := shortID + "-" + suffix

		_, err = s.linkRepo.Get(ctx, candidate)
		if errors.Is(err, repository.ErrLinkNotFound) {
			id = candidate
			break
		}
		if err != nil {
			return nil, err
		}
	}
	if id == "" {
		return nil, fmt.Errorf("failed to allocate id for %q", shortID)
	}

	link := &models.Link{
		ID:              id,
		AffiliateURL:    affiliateURL,
		PixelCode:       strings.TrimSpace(input.PixelCode),
		CompletePayment: input.CompletePayment,
		CreatedAt:       time.Now(),
	}

	if err := s.linkRepo.Upsert(ctx, link); err != nil {
		return nil, err
	}

	if err := s.cacheRepo.Set(ctx, link, cacheTTL); err != nil {
		s.logger.Warn("Не удалось закэшировать ссылку", zap.String("id", link.ID), zap.Error(err))
	}

	return link, nil
}

// UpdateLink обновляет переданные поля существующей ссылки
func (s *linkService) UpdateLink(ctx context.Context, id string, input *models.UpdateLinkInput) (*models.Link, error) {
	link, err := s.linkRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.AffiliateURL != nil {
		affiliateURL := strings.TrimSpace(*input.AffiliateURL)
		if err := validateURL(affiliateURL); err != nil {
			return nil, err
		}
		link.AffiliateURL = affiliateURL
	}
	if input.PixelCode != nil {
		link.PixelCode = strings.TrimSpace(*input.PixelCode)
	}
	if input.CompletePayment != nil {
		link.CompletePayment = *input.CompletePayment
	}

	if err := s.linkRepo.Upsert(ctx, link); err != nil {
		return nil, err
	}

	if err := s.cacheRepo.Delete(ctx, id); err != nil {
		s.logger.Warn("Не удалось сбросить кэш ссылки", zap.String("id", id), zap.Error(err))
	}

	return link, nil
}

// GetLink получает ссылку (сначала из кэша, затем из БД)
func (s *linkService) GetLink(ctx context.Context, id string) (*models.Link, error) {
	link, err := s.cacheRepo.Get(ctx, id)
	if err == nil {
		return link, nil
	}
	if !errors.Is(err, repository.ErrCacheMiss) {
		s.logger.Warn("Ошибка чтения кэша", zap.String("id", id), zap.Error(err))
	}

	link, err = s.linkRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cacheRepo.Set(ctx, link, cacheTTL); err != nil {
		s.logger.Warn("Не удалось закэшировать ссылку", zap.String("id", id), zap.Error(err))
	}

	return link, nil
}

// DeleteLink удаляет ссылку и её кэш
func (s *linkService) DeleteLink(ctx context.Context, id string) error {
	if err := s.cacheRepo.Delete(ctx, id); err != nil {
		s.logger.Warn("Не удалось сбросить кэш ссылки", zap.String("id", id), zap.Error(err))
	}

	return s.linkRepo.Delete(ctx, id)
}

// ListLinks возвращает страницу ссылок, отфильтрованных по подстроке id без учёта регистра
func (s *linkService) ListLinks(ctx context.Context, opts models.LinkListOptions, query string, page int) (*models.LinkPage, error) {
	links, err := s.linkRepo.List(ctx, opts)
	if err != nil {
		return nil, err
	}

	if query = strings.ToLower(strings.TrimSpace(query)); query != "" {
		filtered := links[:0]
		for _, link := range links {
			if strings.Contains(strings.ToLower(link.ID), query) {
				filtered = append(filtered, link)
			}
		}
		links = filtered
	}

	total := len(links)
	totalPages := max(1, (total+LinksPerPage-1)/LinksPerPage)
	page = min(max(page, 1), totalPages)

	start := min((page-1)*LinksPerPage, total)
	end := min(start+LinksPerPage, total)

	return &models.LinkPage{
		Links:      links[start:end],
		Page:       page,
		PerPage:    LinksPerPage,
		TotalPages: totalPages,
		TotalItems: total,
	}, nil
}

// DiagnosePixel разбирает сохранённый код пикселя ссылки
func (s *linkService) DiagnosePixel(ctx context.Context, id string) (*models.PixelDiagnostics, error) {
	link, err := s.GetLink(ctx, id)
	if err != nil {
		return nil, err
	}

	diag := DiagnosePixel(link.PixelCode)
	diag.LinkID = link.ID
	diag.CompletePayment = link.CompletePayment
	return &diag, nil
}

// generateSuffix генерирует случайный суффикс из строчных латинских букв и цифр
func generateSuffix() (string, error) {
	result := make([]byte, suffixLength)
	for i := 0; i < suffixLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(suffixCharset))))
		if err != nil {
			return "", err
		}
		result[i] = suffixCharset[num.Int64()]
	}
	return string(result), nil
}

// validateURL принимает только абсолютные http(s) адреса
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") || strings.ContainsAny(raw, " \t\n") {
		return ErrInvalidURL
	}
	return nil
}
