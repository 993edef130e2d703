package analytics

import (
	"slices"
	"strings"
	"time"

	"github.com/SergeiKhy/shuffle/internal/models"
)

// Rank группирует клики окна по ссылкам и сортирует по количеству (по убыванию),
// при равенстве по идентификатору ссылки (по возрастанию).
func (d *Dataset) Rank(window TimeWindow) []models.RankingEntry {
	type bucket struct {
		count int
		last  time.Time
	}

	buckets := make(map[string]*bucket)
	for _, event := range d.Events {
		if !window.Contains(event.ClickedAt) {
			continue
		}
		b, ok := buckets[event.LinkID]
		if !ok {
			b = &bucket{last: event.ClickedAt}
			buckets[event.LinkID] = b
		}
		b.count++
		if event.ClickedAt.After(b.last) {
			b.last = event.ClickedAt
		}
	}

	entries := make([]models.RankingEntry, 0, len(buckets))
	for linkID, b := range buckets {
		last := b.last
		entries = append(entries, models.RankingEntry{
			LinkID:      linkID,
			Count:       b.count,
			ShortURL:    d.ShortURL(linkID),
			TargetURL:   d.TargetURL(linkID),
			LastClicked: &last,
		})
	}

	slices.SortFunc(entries, func(a, b models.RankingEntry) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.LinkID, b.LinkID)
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}

	return entries
}

// TotalClicks сумма кликов в рейтинге
func TotalClicks(entries []models.RankingEntry) int {
	total := 0
	for _, e := range entries {
		total += e.Count
	}
	return total
}
