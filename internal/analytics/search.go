package analytics

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/SergeiKhy/shuffle/internal/models"
)

var ErrUnknownSearchField = errors.New("unknown search field")

func validateField(field models.SearchField) error {
	switch field {
	case models.SearchByLinkID, models.SearchByTargetURL, models.SearchByCount:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownSearchField, field)
}

func normalizeQuery(query string) string {
	return strings.TrimSpace(query)
}

// Search ищет по дедуплицированным кликам.
//
// Пустой (после обрезки пробелов) запрос означает, что поиск не активен, и возвращает nil.
// Отсутствие совпадений возвращает пустой, но не nil срез.
//
// linkId и targetUrl ищут подстроку без учёта регистра и возвращают каждый клик,
// от новых к старым. count сворачивает клики по ссылкам и возвращает ссылки
// с точно таким количеством кликов, по возрастанию id. Нечисловой запрос для count
// даёт пустой результат.
func (d *Dataset) Search(query string, field models.SearchField) ([]models.SearchRow, error) {
	if err := validateField(field); err != nil {
		return nil, err
	}

	query = normalizeQuery(query)
	if query == "" {
		return nil, nil
	}

	if field == models.SearchByCount {
		return d.searchByCount(query), nil
	}

	needle := strings.ToLower(query)
	rows := []models.SearchRow{}
	var matched []models.ClickEvent

	for _, event := range d.Events {
		var haystack string
		if field == models.SearchByLinkID {
			haystack = event.LinkID
		} else {
			haystack = d.TargetURL(event.LinkID)
		}
		if strings.Contains(strings.ToLower(haystack), needle) {
			matched = append(matched, event)
		}
	}

	slices.SortFunc(matched, func(a, b models.ClickEvent) int {
		if c := b.ClickedAt.Compare(a.ClickedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	for _, event := range matched {
		rows = append(rows, models.NewClickSearchRow(models.ClickRow{
			EventID:   event.ID,
			LinkID:    event.LinkID,
			ShortURL:  d.ShortURL(event.LinkID),
			TargetURL: d.TargetURL(event.LinkID),
			ClickedAt: event.ClickedAt,
			UserAgent: event.UserAgent,
			Referrer:  event.Referrer,
		}))
	}

	return rows, nil
}

func (d *Dataset) searchByCount(query string) []models.SearchRow {
	rows := []models.SearchRow{}

	want, err := strconv.Atoi(query)
	if err != nil {
		return rows
	}

	for _, total := range d.Totals() {
		if total.Count == want {
			rows = append(rows, models.NewLinkSearchRow(total))
		}
	}

	return rows
}

// Totals количество кликов по каждой ссылке за всё время, по возрастанию id
func (d *Dataset) Totals() []models.LinkTotal {
	counts := make(map[string]int)
	for _, event := range d.Events {
		counts[event.LinkID]++
	}

	totals := make([]models.LinkTotal, 0, len(counts))
	for linkID, count := range counts {
		totals = append(totals, models.LinkTotal{
			LinkID:    linkID,
			ShortURL:  d.ShortURL(linkID),
			TargetURL: d.TargetURL(linkID),
			Count:     count,
		})
	}

	slices.SortFunc(totals, func(a, b models.LinkTotal) int {
		return strings.Compare(a.LinkID, b.LinkID)
	})

	return totals
}
