package analytics

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/SergeiKhy/shuffle/internal/models"
)

// LastClickedLayout формат последнего клика в рейтинге
const LastClickedLayout = "2006/01/02 15:04"

const (
	fileDateLayout   = "20060102"
	maxKeywordLength = 30
)

// Column колонка CSV: заголовок и извлечение значения из строки
type Column[T any] struct {
	Label string
	Value func(T) string
}

// WriteCSV пишет заголовок и по одной записи на строку.
// Поля с запятыми, кавычками и переводами строк экранируются по RFC 4180.
func WriteCSV[T any](w io.Writer, rows []T, columns []Column[T]) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = col.Label
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = col.Value(row)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// RankingColumns колонки выгрузки рейтинга. Отсутствующий последний клик выводится как "-".
var RankingColumns = []Column[models.RankingEntry]{
	{Label: "Rank", Value: func(e models.RankingEntry) string { return strconv.Itoa(e.Rank) }},
	{Label: "Link ID", Value: func(e models.RankingEntry) string { return e.LinkID }},
	{Label: "Short URL", Value: func(e models.RankingEntry) string { return e.ShortURL }},
	{Label: "Target URL", Value: func(e models.RankingEntry) string { return e.TargetURL }},
	{Label: "Last Clicked", Value: func(e models.RankingEntry) string {
		if e.LastClicked == nil {
			return "-"
		}
		return e.LastClicked.Format(LastClickedLayout)
	}},
	{Label: "Clicks", Value: func(e models.RankingEntry) string { return strconv.Itoa(e.Count) }},
}

// SearchColumns колонки выгрузки результатов поиска, общие для обоих видов строк
var SearchColumns = searchColumns()

func searchColumns() []Column[models.SearchRow] {
	columns := make([]Column[models.SearchRow], len(models.SearchColumns))
	for i, label := range models.SearchColumns {
		columns[i] = Column[models.SearchRow]{
			Label: label,
			Value: func(r models.SearchRow) string { return r.Cells()[i] },
		}
	}
	return columns
}

func WriteRankingCSV(w io.Writer, entries []models.RankingEntry) error {
	return WriteCSV(w, entries, RankingColumns)
}

func WriteSearchCSV(w io.Writer, rows []models.SearchRow) error {
	return WriteCSV(w, rows, SearchColumns)
}

// StatsFilename имя файла выгрузки окна: 20240131_daily_stats.csv
func StatsFilename(now time.Time, kind WindowKind) string {
	return fmt.Sprintf("%s_%s_stats.csv", now.Format(fileDateLayout), kind)
}

// CustomRangeFilename имя файла выгрузки периода: 20240131_customRange_20240101-20240115.csv
func CustomRangeFilename(now time.Time, window TimeWindow) string {
	return fmt.Sprintf("%s_customRange_%s-%s.csv",
		now.Format(fileDateLayout),
		window.Start.Format(fileDateLayout),
		window.End.Format(fileDateLayout),
	)
}

// SearchFilename имя файла выгрузки поиска: 20240131_search_linkId_promo.csv
func SearchFilename(now time.Time, field models.SearchField, query string) string {
	return fmt.Sprintf("%s_search_%s_%s.csv", now.Format(fileDateLayout), field, sanitizeKeyword(query))
}

var keywordReplacer = strings.NewReplacer(
	`\`, "_", "/", "_", ":", "_", "*", "_", "?", "_", `"`, "_", "<", "_", ">", "_", "|", "_",
)

func sanitizeKeyword(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return "all"
	}
	keyword := []rune(keywordReplacer.Replace(query))
	if len(keyword) > maxKeywordLength {
		keyword = keyword[:maxKeywordLength]
	}
	return string(keyword)
}
