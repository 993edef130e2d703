package analytics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SergeiKhy/shuffle/internal/analytics"
	"github.com/SergeiKhy/shuffle/internal/models"
	"github.com/SergeiKhy/shuffle/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, jst)

// setupEngine создаёт движок поверх моковых хранилищ с фиксированным временем
func setupEngine(opts analytics.Options) (*analytics.Engine, *mocks.MockLinkRepository, *mocks.MockClickRepository) {
	links := mocks.NewMockLinkRepository()
	clicks := mocks.NewMockClickRepository()

	if opts.BaseURL == "" {
		opts.BaseURL = "https://s.example"
	}
	opts.Location = jst
	opts.Now = func() time.Time { return fixedNow }
	if opts.FetchConcurrency == 0 {
		opts.FetchConcurrency = 2
	}

	return analytics.NewEngine(links, clicks, opts, zap.NewNop()), links, clicks
}

func click(id, linkID string, at time.Time) models.ClickEvent {
	return models.ClickEvent{ID: id, LinkID: linkID, ClickedAt: at}
}

func rankingOf(t *testing.T, report *analytics.Report, kind analytics.WindowKind) analytics.WindowRanking {
	t.Helper()
	ranking, ok := report.Ranking(kind)
	require.True(t, ok, "ranking %s missing", kind)
	return ranking
}

// TestLoadAndAggregate_DuplicateEventCountedOnce проверяет, что повторный id учитывается один раз
func TestLoadAndAggregate_DuplicateEventCountedOnce(t *testing.T) {
	engine, links, clicks := setupEngine(analytics.Options{})
	links.Add(models.Link{ID: "a", AffiliateURL: "https://x.example"})

	hourAgo := fixedNow.Add(-time.Hour)
	clicks.AddDefault(click("1", "a", hourAgo), click("2", "a", hourAgo), click("1", "a", hourAgo))

	report, err := engine.LoadAndAggregate(context.Background(), nil)
	require.NoError(t, err)

	daily := rankingOf(t, report, analytics.WindowDaily)
	require.Len(t, daily.Entries, 1)
	assert.Equal(t, "a", daily.Entries[0].LinkID)
	assert.Equal(t, 2, daily.Entries[0].Count)
	assert.Equal(t, "https://x.example", daily.Entries[0].TargetURL)
	assert.Equal(t, "https://s.example/a", daily.Entries[0].ShortURL)
	assert.Equal(t, 2, report.TotalClicks)
}

// TestLoad_DeduplicatesAcrossPartitions проверяет дедупликацию между основным источником и партициями
func TestLoad_DeduplicatesAcrossPartitions(t *testing.T) {
	engine, _, clicks := setupEngine(analytics.Options{})

	at := fixedNow.Add(-2 * time.Hour)
	clicks.AddDefault(click("1", "a", at), click("2", "b", at))
	clicks.AddPartition("click_logs_y2024m02", click("2", "b", at), click("3", "a", at))
	clicks.AddPartition("click_logs_y2024m03", click("1", "a", at), click("3", "a", at), click("4", "c", at))

	d, err := engine.Load(context.Background())
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, e := range d.Events {
		ids[e.ID] = true
	}
	assert.Len(t, d.Events, 4)
	assert.Len(t, ids, 4)
	assert.Equal(t, []string{"click_logs_y2024m02", "click_logs_y2024m03"}, d.Partitions)
	assert.Empty(t, d.SkippedPartitions)
}

// TestLoad_FirstOccurrenceWins проверяет, что копия из основного источника побеждает копию из партиции
func TestLoad_FirstOccurrenceWins(t *testing.T) {
	engine, _, clicks := setupEngine(analytics.Options{})

	at := fixedNow.Add(-time.Hour)
	fromDefault := click("1", "a", at)
	fromDefault.UserAgent = "default"
	fromEarly := click("2", "a", at)
	fromEarly.UserAgent = "early"
	fromLate := click("2", "a", at)
	fromLate.UserAgent = "late"
	fromPartition := click("1", "a", at)
	fromPartition.UserAgent = "partition"

	clicks.AddDefault(fromDefault)
	clicks.AddPartition("click_logs_y2024m03", fromPartition, fromLate)
	clicks.AddPartition("click_logs_y2024m01", fromEarly)

	d, err := engine.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, d.Events, 2)

	agents := map[string]string{}
	for _, e := range d.Events {
		agents[e.ID] = e.UserAgent
	}
	assert.Equal(t, "default", agents["1"])
	assert.Equal(t, "early", agents["2"])
}

// TestLoadAndAggregate_WindowSumsMatchEvents проверяет, что сумма по рейтингу равна числу кликов окна
func TestLoadAndAggregate_WindowSumsMatchEvents(t *testing.T) {
	engine, links, clicks := setupEngine(analytics.Options{})
	links.Add(models.Link{ID: "a", AffiliateURL: "https://a.example"}, models.Link{ID: "b", AffiliateURL: "https://b.example"})

	offsets := []time.Duration{
		time.Minute, 3 * time.Hour, 23 * time.Hour, 25 * time.Hour, 5 * 24 * time.Hour,
		9 * 24 * time.Hour, 20 * 24 * time.Hour, 40 * 24 * time.Hour, 400 * 24 * time.Hour,
	}
	var all []models.ClickEvent
	for i, offset := range offsets {
		linkID := "a"
		if i%3 == 0 {
			linkID = "b"
		}
		e := click(string(rune('A'+i)), linkID, fixedNow.Add(-offset))
		all = append(all, e)
		if i%2 == 0 {
			clicks.AddDefault(e)
		} else {
			clicks.AddPartition("click_logs_y2024m03", e)
		}
	}
	clicks.AddPartition("click_logs_y2024m02", all[0], all[1])

	custom, err := analytics.ParseCustomRange("2024-03-01", "2024-03-10", jst)
	require.NoError(t, err)

	report, err := engine.LoadAndAggregate(context.Background(), &custom)
	require.NoError(t, err)

	windows := map[analytics.WindowKind]analytics.TimeWindow{
		analytics.WindowDaily:       analytics.Daily(fixedNow),
		analytics.WindowWeekly:      analytics.Weekly(fixedNow),
		analytics.WindowMonthly:     analytics.Monthly(fixedNow),
		analytics.WindowAllTime:     analytics.AllTime(),
		analytics.WindowCustomRange: custom,
	}

	for kind, w := range windows {
		expected := 0
		for _, e := range all {
			if w.Contains(e.ClickedAt) {
				expected++
			}
		}
		ranking := rankingOf(t, report, kind)
		assert.Equal(t, expected, analytics.TotalClicks(ranking.Entries), kind)
		assert.Equal(t, expected, ranking.TotalClicks, kind)
	}

	assert.Equal(t, len(all), report.TotalClicks)
	assert.Equal(t, 2, report.LinkCount)
}

// TestLoadAndAggregate_UnknownLink проверяет заглушку для удалённой ссылки
func TestLoadAndAggregate_UnknownLink(t *testing.T) {
	engine, links, clicks := setupEngine(analytics.Options{})
	links.Add(models.Link{ID: "a", AffiliateURL: "https://a.example"})

	clicks.AddDefault(click("1", "ghost", fixedNow.Add(-time.Hour)), click("2", "a", fixedNow.Add(-time.Hour)))

	report, err := engine.LoadAndAggregate(context.Background(), nil)
	require.NoError(t, err)

	allTime := rankingOf(t, report, analytics.WindowAllTime)
	require.Len(t, allTime.Entries, 2)

	var ghost *models.RankingEntry
	for i := range allTime.Entries {
		if allTime.Entries[i].LinkID == "ghost" {
			ghost = &allTime.Entries[i]
		}
	}
	require.NotNil(t, ghost)
	assert.Equal(t, models.UnknownTargetURL, ghost.TargetURL)
	assert.Equal(t, 1, ghost.Count)
}

// TestLoadAndAggregate_RankingOrder проверяет сортировку по количеству и id при равенстве
func TestLoadAndAggregate_RankingOrder(t *testing.T) {
	engine, _, clicks := setupEngine(analytics.Options{})

	at := fixedNow.Add(-time.Hour)
	clicks.AddDefault(
		click("1", "zeta", at), click("2", "zeta", at),
		click("3", "beta", at),
		click("4", "alpha", at),
		click("5", "mid", at), click("6", "mid", at), click("7", "mid", at),
	)

	report, err := engine.LoadAndAggregate(context.Background(), nil)
	require.NoError(t, err)

	daily := rankingOf(t, report, analytics.WindowDaily)
	var order []string
	for i, e := range daily.Entries {
		order = append(order, e.LinkID)
		assert.Equal(t, i+1, e.Rank)
	}
	assert.Equal(t, []string{"mid", "zeta", "alpha", "beta"}, order)
}

// TestLoadAndAggregate_LastClicked проверяет время последнего клика в окне
func TestLoadAndAggregate_LastClicked(t *testing.T) {
	engine, _, clicks := setupEngine(analytics.Options{})

	latest := fixedNow.Add(-10 * time.Minute)
	clicks.AddDefault(click("1", "a", fixedNow.Add(-5*time.Hour)), click("2", "a", latest), click("3", "a", fixedNow.Add(-2*time.Hour)))

	report, err := engine.LoadAndAggregate(context.Background(), nil)
	require.NoError(t, err)

	daily := rankingOf(t, report, analytics.WindowDaily)
	require.Len(t, daily.Entries, 1)
	require.NotNil(t, daily.Entries[0].LastClicked)
	assert.True(t, daily.Entries[0].LastClicked.Equal(latest))
}

// TestLoadAndAggregate_Idempotent проверяет, что повторный прогон даёт тот же результат
func TestLoadAndAggregate_Idempotent(t *testing.T) {
	engine, _, clicks := setupEngine(analytics.Options{})

	for i := 0; i < 20; i++ {
		linkID := []string{"a", "b", "c", "d"}[i%4]
		e := click(string(rune('a'+i)), linkID, fixedNow.Add(-time.Duration(i)*time.Hour))
		clicks.AddPartition([]string{"click_logs_y2024m01", "click_logs_y2024m02", "click_logs_y2024m03"}[i%3], e)
	}

	first, err := engine.LoadAndAggregate(context.Background(), nil)
	require.NoError(t, err)
	second, err := engine.LoadAndAggregate(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// TestLoad_LinkStoreFailure проверяет, что ошибка реестра ссылок прерывает загрузку с исходным сообщением
func TestLoad_LinkStoreFailure(t *testing.T) {
	engine, links, _ := setupEngine(analytics.Options{})
	links.ListErr = errors.New("permission denied for table links")

	_, err := engine.LoadAndAggregate(context.Background(), nil)
	require.Error(t, err)

	var fetchErr *analytics.DataFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, analytics.SourceLinks, fetchErr.Source)
	assert.Contains(t, err.Error(), "permission denied for table links")
	assert.ErrorIs(t, err, links.ListErr)
}

// TestLoad_DefaultSourceFailure проверяет, что ошибка основного источника кликов прерывает загрузку
func TestLoad_DefaultSourceFailure(t *testing.T) {
	engine, _, clicks := setupEngine(analytics.Options{})
	clicks.ListAllErr = errors.New("connection reset by peer")

	_, err := engine.LoadAndAggregate(context.Background(), nil)

	var fetchErr *analytics.DataFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, analytics.SourceDefault, fetchErr.Source)
	assert.Contains(t, err.Error(), "connection reset by peer")
}

// TestLoad_PartitionFailureSkipped проверяет, что сбой партиции даёт пустой вклад
func TestLoad_PartitionFailureSkipped(t *testing.T) {
	engine, _, clicks := setupEngine(analytics.Options{})

	at := fixedNow.Add(-time.Hour)
	clicks.AddDefault(click("1", "a", at))
	clicks.AddPartition("click_logs_y2024m02", click("2", "a", at))
	clicks.AddPartition("click_logs_y2024m03", click("3", "a", at))
	clicks.PartitionErrs["click_logs_y2024m02"] = errors.New("relation is locked")

	report, err := engine.LoadAndAggregate(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"click_logs_y2024m02"}, report.SkippedPartitions)
	assert.Equal(t, 2, report.TotalClicks)
}

// TestLoad_PartitionTimeout проверяет, что зависшая партиция прерывается по таймауту и пропускается
func TestLoad_PartitionTimeout(t *testing.T) {
	engine, _, clicks := setupEngine(analytics.Options{FetchTimeout: 20 * time.Millisecond})

	clicks.AddDefault(click("1", "a", fixedNow.Add(-time.Hour)))
	clicks.AddPartition("click_logs_y2024m03", click("2", "a", fixedNow.Add(-time.Hour)))
	clicks.PartitionDelay = time.Second

	start := time.Now()
	report, err := engine.LoadAndAggregate(context.Background(), nil)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.Equal(t, []string{"click_logs_y2024m03"}, report.SkippedPartitions)
	assert.Equal(t, 1, report.TotalClicks)
}

// TestLoad_DiscoveryFailureUsesConfiguredPartitions проверяет откат на сконфигурированный список партиций
func TestLoad_DiscoveryFailureUsesConfiguredPartitions(t *testing.T) {
	engine, _, clicks := setupEngine(analytics.Options{
		Partitions: []string{"click_logs_y2024m03", "click_logs_y2024m01"},
	})

	at := fixedNow.Add(-time.Hour)
	clicks.AddPartition("click_logs_y2024m01", click("1", "a", at))
	clicks.AddPartition("click_logs_y2024m02", click("2", "a", at))
	clicks.AddPartition("click_logs_y2024m03", click("3", "a", at))
	clicks.ListPartitionsErr = errors.New("pg_inherits: permission denied")

	d, err := engine.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"click_logs_y2024m01", "click_logs_y2024m03"}, d.Partitions)
	assert.Len(t, d.Events, 2)
}

// TestLoad_ConfiguredMissingPartitionSkipped проверяет пропуск сконфигурированной, но отсутствующей партиции
func TestLoad_ConfiguredMissingPartitionSkipped(t *testing.T) {
	engine, _, clicks := setupEngine(analytics.Options{
		Partitions: []string{"click_logs_y2023m12"},
	})
	clicks.AddPartition("click_logs_y2024m01", click("1", "a", fixedNow.Add(-time.Hour)))

	d, err := engine.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"click_logs_y2023m12", "click_logs_y2024m01"}, d.Partitions)
	assert.Equal(t, []string{"click_logs_y2023m12"}, d.SkippedPartitions)
	assert.Len(t, d.Events, 1)
}

// TestLoad_ConvertsToReportLocation проверяет перевод времени кликов в часовой пояс отчётов
func TestLoad_ConvertsToReportLocation(t *testing.T) {
	engine, _, clicks := setupEngine(analytics.Options{})
	clicks.AddDefault(click("1", "a", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)))

	d, err := engine.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, d.Events, 1)

	assert.Equal(t, 9, d.Events[0].ClickedAt.Hour())
	assert.Equal(t, jst, d.Events[0].ClickedAt.Location())
}

// TestEngine_SearchEmptyQuery проверяет, что пустой запрос не запускает поиск и не читает хранилища
func TestEngine_SearchEmptyQuery(t *testing.T) {
	engine, _, clicks := setupEngine(analytics.Options{})
	clicks.ListAllErr = errors.New("must not be called")

	rows, err := engine.Search(context.Background(), "   ", models.SearchByLinkID)
	require.NoError(t, err)
	assert.Nil(t, rows)
}

// TestEngine_SearchPropagatesFetchError проверяет, что ошибка загрузки возвращается вызывающему
func TestEngine_SearchPropagatesFetchError(t *testing.T) {
	engine, _, clicks := setupEngine(analytics.Options{})
	clicks.ListAllErr = errors.New("timeout expired")

	_, err := engine.Search(context.Background(), "a", models.SearchByLinkID)

	var fetchErr *analytics.DataFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, fetchErr.Error(), "timeout expired")
}
