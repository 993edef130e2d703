// Package analytics строит рейтинги кликов, поиск и CSV выгрузки поверх журнала кликов.
//
// Каждый вызов читает журнал и реестр ссылок целиком: основной источник (родительская
// таблица) и все известные партиции. Клики дедуплицируются по id, первое вхождение
// побеждает в порядке слияния: основной источник, затем партиции по возрастанию.
// Результаты между вызовами не кэшируются.
package analytics

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/SergeiKhy/shuffle/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	SourceLinks   = "links"
	SourceDefault = "click_logs"
)

// DataFetchError ошибка чтения обязательного источника данных.
// Сообщение источника сохраняется без изменений.
type DataFetchError struct {
	Source string
	Err    error
}

func (e *DataFetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %s", e.Source, e.Err.Error())
}

func (e *DataFetchError) Unwrap() error {
	return e.Err
}

// LinkStore реестр ссылок
type LinkStore interface {
	List(ctx context.Context, opts models.LinkListOptions) ([]models.Link, error)
}

// ClickLog журнал кликов, разбитый на партиции
type ClickLog interface {
	ListAll(ctx context.Context) ([]models.ClickEvent, error)
	ListPartition(ctx context.Context, partitionID string) ([]models.ClickEvent, error)
	ListPartitions(ctx context.Context) ([]string, error)
}

type Options struct {
	BaseURL          string
	Location         *time.Location
	Partitions       []string // читаются в дополнение к обнаруженным
	FetchTimeout     time.Duration
	FetchConcurrency int
	Now              func() time.Time
}

type Engine struct {
	links  LinkStore
	clicks ClickLog
	opts   Options
	logger *zap.Logger
}

func NewEngine(links LinkStore, clicks ClickLog, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.FetchConcurrency < 1 {
		opts.FetchConcurrency = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Engine{
		links:  links,
		clicks: clicks,
		opts:   opts,
		logger: logger,
	}
}

// Now текущее время в часовом поясе отчётов
func (e *Engine) Now() time.Time {
	return e.opts.Now().In(e.opts.Location)
}

func (e *Engine) Location() *time.Location {
	return e.opts.Location
}

// Dataset дедуплицированные клики и реестр ссылок одного прогона
type Dataset struct {
	Events            []models.ClickEvent
	Links             map[string]models.Link
	Partitions        []string
	SkippedPartitions []string
	baseURL           string
}

// NewDataset сливает источники в указанном порядке, оставляя первое вхождение каждого id
func NewDataset(baseURL string, links []models.Link, sources ...[]models.ClickEvent) *Dataset {
	d := &Dataset{
		Links:   make(map[string]models.Link, len(links)),
		baseURL: baseURL,
	}
	for _, link := range links {
		d.Links[link.ID] = link
	}

	seen := make(map[string]struct{})
	for _, source := range sources {
		for _, event := range source {
			if _, dup := seen[event.ID]; dup {
				continue
			}
			seen[event.ID] = struct{}{}
			d.Events = append(d.Events, event)
		}
	}

	return d
}

func (d *Dataset) ShortURL(linkID string) string {
	return d.baseURL + "/" + linkID
}

// TargetURL адрес назначения ссылки или заглушка, если ссылка удалена
func (d *Dataset) TargetURL(linkID string) string {
	if link, ok := d.Links[linkID]; ok {
		return link.AffiliateURL
	}
	return models.UnknownTargetURL
}

// Load читает все источники. Ошибка реестра ссылок или основного источника кликов
// прерывает загрузку, ошибка отдельной партиции только логируется.
func (e *Engine) Load(ctx context.Context) (*Dataset, error) {
	partitions := e.partitionIDs(ctx)

	var (
		links    []models.Link
		defaults []models.ClickEvent
		results  = make([][]models.ClickEvent, len(partitions))
		failed   = make([]bool, len(partitions))
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		list, err := e.links.List(gctx, models.LinkListOptions{SortField: models.SortByID, Ascending: true})
		if err != nil {
			return &DataFetchError{Source: SourceLinks, Err: err}
		}
		links = list
		return nil
	})

	g.Go(func() error {
		events, err := e.clicks.ListAll(gctx)
		if err != nil {
			return &DataFetchError{Source: SourceDefault, Err: err}
		}
		defaults = events
		return nil
	})

	g.Go(func() error {
		e.fetchPartitions(gctx, partitions, results, failed)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sources := make([][]models.ClickEvent, 0, len(partitions)+1)
	sources = append(sources, defaults)
	sources = append(sources, results...)

	d := NewDataset(e.opts.BaseURL, links, sources...)
	d.Partitions = partitions
	for i, id := range partitions {
		if failed[i] {
			d.SkippedPartitions = append(d.SkippedPartitions, id)
		}
	}

	for i := range d.Events {
		d.Events[i].ClickedAt = d.Events[i].ClickedAt.In(e.opts.Location)
	}

	return d, nil
}

// fetchPartitions читает партиции параллельно, результат кладётся по индексу партиции
func (e *Engine) fetchPartitions(ctx context.Context, partitions []string, results [][]models.ClickEvent, failed []bool) {
	var g errgroup.Group
	g.SetLimit(e.opts.FetchConcurrency)

	for i, id := range partitions {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, e.opts.FetchTimeout)
			defer cancel()

			events, err := e.clicks.ListPartition(pctx, id)
			if err != nil {
				e.logger.Warn("Партиция пропущена",
					zap.String("partition", id),
					zap.Error(err),
				)
				failed[i] = true
				return nil
			}
			results[i] = events
			return nil
		})
	}

	_ = g.Wait()
}

// partitionIDs объединяет обнаруженные и сконфигурированные партиции, по возрастанию
func (e *Engine) partitionIDs(ctx context.Context) []string {
	ids := slices.Clone(e.opts.Partitions)

	dctx, cancel := context.WithTimeout(ctx, e.opts.FetchTimeout)
	defer cancel()

	discovered, err := e.clicks.ListPartitions(dctx)
	if err != nil {
		e.logger.Warn("Не удалось получить список партиций, используем конфигурацию",
			zap.Strings("configured", e.opts.Partitions),
			zap.Error(err),
		)
	}
	ids = append(ids, discovered...)

	slices.Sort(ids)
	return slices.Compact(ids)
}

// WindowRanking рейтинг одного окна
type WindowRanking struct {
	Window      WindowKind            `json:"window"`
	From        *time.Time            `json:"from,omitempty"`
	To          *time.Time            `json:"to,omitempty"`
	Entries     []models.RankingEntry `json:"entries"`
	TotalClicks int                   `json:"total_clicks"`
}

type Report struct {
	GeneratedAt       time.Time       `json:"generated_at"`
	Rankings          []WindowRanking `json:"rankings"`
	TotalClicks       int             `json:"total_clicks"`
	LinkCount         int             `json:"link_count"`
	Partitions        []string        `json:"partitions"`
	SkippedPartitions []string        `json:"skipped_partitions,omitempty"`
}

// Ranking возвращает рейтинг окна указанного вида
func (r *Report) Ranking(kind WindowKind) (WindowRanking, bool) {
	for _, ranking := range r.Rankings {
		if ranking.Window == kind {
			return ranking, true
		}
	}
	return WindowRanking{}, false
}

// LoadAndAggregate загружает данные и строит рейтинги стандартных окон,
// плюс произвольного периода, если он задан.
func (e *Engine) LoadAndAggregate(ctx context.Context, custom *TimeWindow) (*Report, error) {
	d, err := e.Load(ctx)
	if err != nil {
		return nil, err
	}
	return e.Aggregate(d, custom), nil
}

// Aggregate строит отчёт по уже загруженным данным
func (e *Engine) Aggregate(d *Dataset, custom *TimeWindow) *Report {
	now := e.Now()

	windows := make([]TimeWindow, 0, len(StandardWindows)+1)
	for _, kind := range StandardWindows {
		w, _ := WindowFor(kind, now)
		windows = append(windows, w)
	}
	if custom != nil {
		windows = append(windows, *custom)
	}

	report := &Report{
		GeneratedAt:       now,
		TotalClicks:       len(d.Events),
		LinkCount:         len(d.Links),
		Partitions:        d.Partitions,
		SkippedPartitions: d.SkippedPartitions,
	}

	for _, w := range windows {
		entries := d.Rank(w)
		ranking := WindowRanking{
			Window:      w.Kind,
			Entries:     entries,
			TotalClicks: TotalClicks(entries),
		}
		if !w.Start.IsZero() {
			from := w.Start
			ranking.From = &from
		}
		if !w.End.IsZero() {
			to := w.End
			ranking.To = &to
		}
		report.Rankings = append(report.Rankings, ranking)
	}

	return report
}

// Search загружает данные и ищет по ним. Пустой запрос возвращает nil без загрузки.
func (e *Engine) Search(ctx context.Context, query string, field models.SearchField) ([]models.SearchRow, error) {
	if err := validateField(field); err != nil {
		return nil, err
	}
	if normalizeQuery(query) == "" {
		return nil, nil
	}

	d, err := e.Load(ctx)
	if err != nil {
		return nil, err
	}
	return d.Search(query, field)
}
