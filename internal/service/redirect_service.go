package service

import (
	"context"
	"time"

	"github.com/SergeiKhy/shuffle/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultTrackTimeout = 2 * time.Second

// RedirectService разрешает короткую ссылку в адрес назначения.
// Если ссылка найдена, редирект выполняется всегда, независимо от результата трекинга.
type RedirectService interface {
	Resolve(ctx context.Context, req *models.ClickRequest) (*models.Link, error)
}

type redirectService struct {
	links        LinkService
	clicks       ClickProcessor
	tracker      PixelTracker
	trackTimeout time.Duration
	logger       *zap.Logger
}

func NewRedirectService(
	links LinkService,
	clicks ClickProcessor,
	tracker PixelTracker,
	trackTimeout time.Duration,
	logger *zap.Logger,
) RedirectService {
	if tracker == nil {
		tracker = noopPixelTracker{}
	}
	if trackTimeout <= 0 {
		trackTimeout = defaultTrackTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redirectService{
		links:        links,
		clicks:       clicks,
		tracker:      tracker,
		trackTimeout: trackTimeout,
		logger:       logger,
	}
}

// Resolve находит ссылку, отправляет события пикселя в пределах trackTimeout
// и ставит клик в очередь. Ошибки трекинга и записи клика только логируются.
func (s *redirectService) Resolve(ctx context.Context, req *models.ClickRequest) (*models.Link, error) {
	link, err := s.links.GetLink(ctx, req.LinkID)
	if err != nil {
		return nil, err
	}

	s.track(ctx, link, req)

	if err := s.clicks.RecordClick(ctx, req); err != nil {
		s.logger.Debug("Не удалось поставить клик в очередь", zap.String("link_id", link.ID), zap.Error(err))
	}

	return link, nil
}

func (s *redirectService) track(ctx context.Context, link *models.Link, req *models.ClickRequest) {
	if link.PixelCode == "" {
		return
	}

	pixelID := DiagnosePixel(link.PixelCode).PixelID
	if pixelID == "" {
		return
	}

	events := []string{PixelEventClickButton}
	if link.CompletePayment {
		events = append(events, PixelEventCompletePayment)
	}

	tctx, cancel := context.WithTimeout(ctx, s.trackTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, name := range events {
			err := s.tracker.Track(tctx, PixelEvent{
				PixelID:   pixelID,
				Event:     name,
				EventID:   uuid.NewString(),
				Timestamp: time.Now().UTC(),
				LinkID:    link.ID,
				URL:       link.AffiliateURL,
				IPAddress: req.IPAddress,
				UserAgent: req.UserAgent,
				Referrer:  req.Referrer,
			})
			if err != nil {
				s.logger.Warn("Событие пикселя не отправлено",
					zap.String("link_id", link.ID),
					zap.String("event", name),
					zap.Error(err),
				)
				return
			}
		}
	}()

	// Трекер, не уважающий ctx, не задерживает редирект дольше trackTimeout
	select {
	case <-done:
	case <-tctx.Done():
		s.logger.Warn("Таймаут отправки событий пикселя", zap.String("link_id", link.ID))
	}
}
