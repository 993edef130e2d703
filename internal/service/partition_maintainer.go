package service

import (
	"context"
	"fmt"
	"time"

	"github.com/SergeiKhy/shuffle/internal/repository"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// PartitionMaintainer заранее создаёт месячные партиции журнала кликов по расписанию
type PartitionMaintainer struct {
	clicks   repository.ClickRepository
	schedule string
	cron     *cron.Cron
	logger   *zap.Logger
	now      func() time.Time
}

func NewPartitionMaintainer(clicks repository.ClickRepository, schedule string, logger *zap.Logger) *PartitionMaintainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PartitionMaintainer{
		clicks:   clicks,
		schedule: schedule,
		cron:     cron.New(cron.WithLocation(time.UTC)),
		logger:   logger,
		now:      time.Now,
	}
}

// EnsureUpcoming создаёт партиции текущего и следующего месяца (UTC)
func (m *PartitionMaintainer) EnsureUpcoming(ctx context.Context) ([]string, error) {
	now := m.now().UTC()
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var created []string
	for _, month := range []time.Time{current, current.AddDate(0, 1, 0)} {
		id, err := m.clicks.EnsurePartition(ctx, month)
		if err != nil {
			return created, err
		}
		created = append(created, id)
	}

	return created, nil
}

// Start создаёт партиции сразу и регистрирует задачу по расписанию
func (m *PartitionMaintainer) Start(ctx context.Context) error {
	if _, err := m.EnsureUpcoming(ctx); err != nil {
		return fmt.Errorf("failed to ensure partitions: %w", err)
	}

	_, err := m.cron.AddFunc(m.schedule, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		ids, err := m.EnsureUpcoming(jobCtx)
		if err != nil {
			m.logger.Error("Не удалось создать партиции журнала кликов", zap.Error(err))
			return
		}
		m.logger.Info("Партиции журнала кликов проверены", zap.Strings("partitions", ids))
	})
	if err != nil {
		return fmt.Errorf("invalid partition schedule %q: %w", m.schedule, err)
	}

	m.cron.Start()
	m.logger.Info("Обслуживание партиций запущено", zap.String("schedule", m.schedule))
	return nil
}

// Stop останавливает планировщик и ждёт завершения текущей задачи
func (m *PartitionMaintainer) Stop() {
	<-m.cron.Stop().Done()
}
