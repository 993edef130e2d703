package service

import (
	"context"
	"sync"
	"time"

	"github.com/SergeiKhy/shuffle/internal/models"
	"github.com/SergeiKhy/shuffle/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Константы worker pool
const (
	defaultWorkerCount   = 3    // Количество воркеров
	defaultChannelBuffer = 1000 // Размер буфера канала
	maxRetries           = 3    // Максимальное количество попыток записи
)

// ClickProcessor интерфейс для асинхронной записи кликов
type ClickProcessor interface {
	Start()
	Stop()
	RecordClick(ctx context.Context, req *models.ClickRequest) error
	Stats() ChannelStats
}

// clickProcessor реализация процессора кликов с использованием Worker Pool
type clickProcessor struct {
	clickRepo    repository.ClickRepository
	logger       *zap.Logger
	clickChannel chan *models.ClickEvent // Канал для событий кликов
	workerCount  int                     // Количество воркеров
	wg           sync.WaitGroup          // WaitGroup для ожидания завершения воркеров
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewClickProcessor создаёт новый экземпляр процессора кликов
func NewClickProcessor(clickRepo repository.ClickRepository, logger *zap.Logger) ClickProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &clickProcessor{
		clickRepo:    clickRepo,
		logger:       logger,
		clickChannel: make(chan *models.ClickEvent, defaultChannelBuffer),
		workerCount:  defaultWorkerCount,
	}
}

// Start запускает worker pool
func (p *clickProcessor) Start() {
	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.logger.Info("Запуск воркеров процессора кликов", zap.Int("count", p.workerCount))

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop останавливает worker pool и дописывает оставшиеся в буфере клики
func (p *clickProcessor) Stop() {
	p.logger.Info("Остановка процессора кликов...")
	p.cancel()
	p.wg.Wait()
	p.drain()
	p.logger.Info("Процессор кликов остановлен")
}

// worker обрабатывает события кликов из канала
func (p *clickProcessor) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("Воркер кликов запущен", zap.Int("id", id))

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("Воркер кликов остановлен", zap.Int("id", id))
			return

		case event, ok := <-p.clickChannel:
			if !ok {
				return
			}
			p.processClick(p.ctx, event)
		}
	}
}

func (p *clickProcessor) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		select {
		case event := <-p.clickChannel:
			p.processClick(ctx, event)
		default:
			return
		}
	}
}

// processClick записывает одно событие клика с retry логикой
func (p *clickProcessor) processClick(parent context.Context, event *models.ClickEvent) {
	ctx, cancel := context.WithTimeout(parent, 5*time.Second)
	defer cancel()

	var err error
	for i := 0; i < maxRetries; i++ {
		if err = p.clickRepo.RecordClick(ctx, event); err == nil {
			return
		}
		if i < maxRetries-1 {
			p.logger.Debug("Повторная попытка записи клика",
				zap.String("link_id", event.LinkID),
				zap.Int("attempt", i+1),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
			case <-time.After(time.Duration(i+1) * 100 * time.Millisecond):
			}
		}
	}

	p.logger.Error("Не удалось записать клик после всех попыток",
		zap.String("link_id", event.LinkID),
		zap.String("event_id", event.ID),
		zap.Error(err),
	)
}

// RecordClick ставит клик в очередь (неблокирующая операция).
// При заполненном буфере клик теряется.
func (p *clickProcessor) RecordClick(ctx context.Context, req *models.ClickRequest) error {
	event := &models.ClickEvent{
		ID:        uuid.NewString(),
		LinkID:    req.LinkID,
		ClickedAt: time.Now().UTC(),
		UserAgent: req.UserAgent,
		Referrer:  req.Referrer,
		IPAddress: req.IPAddress,
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.clickChannel <- event:
		return nil
	default:
		p.logger.Warn("Буфер канала кликов заполнен, событие потеряно",
			zap.String("link_id", req.LinkID),
		)
		return nil
	}
}

// Stats возвращает состояние канала для мониторинга
func (p *clickProcessor) Stats() ChannelStats {
	return ChannelStats{
		BufferSize:  cap(p.clickChannel),
		BufferUsed:  len(p.clickChannel),
		WorkerCount: p.workerCount,
	}
}

// ChannelStats статистика канала worker pool
type ChannelStats struct {
	BufferSize  int `json:"buffer_size"`  // Общая ёмкость канала
	BufferUsed  int `json:"buffer_used"`  // Текущее использование
	WorkerCount int `json:"worker_count"` // Количество воркеров
}
