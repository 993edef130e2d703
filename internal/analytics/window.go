package analytics

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidDateRange = errors.New("invalid date range")

// DateLayout формат дат в параметрах произвольного периода
const DateLayout = "2006-01-02"

// WindowKind имя окна рейтинга
type WindowKind string

const (
	WindowDaily       WindowKind = "daily"
	WindowWeekly      WindowKind = "weekly"
	WindowMonthly     WindowKind = "monthly"
	WindowAllTime     WindowKind = "allTime"
	WindowCustomRange WindowKind = "customRange"
)

// StandardWindows окна, которые считаются при каждом построении отчёта
var StandardWindows = []WindowKind{WindowDaily, WindowWeekly, WindowMonthly, WindowAllTime}

// TimeWindow интервал времени для фильтрации кликов.
// Нулевые Start / End означают отсутствие границы.
// Скользящие окна исключают Start, произвольный период включает обе границы.
type TimeWindow struct {
	Kind           WindowKind
	Start          time.Time
	End            time.Time
	StartInclusive bool
}

func (w TimeWindow) Contains(t time.Time) bool {
	if !w.Start.IsZero() {
		if w.StartInclusive {
			if t.Before(w.Start) {
				return false
			}
		} else if !t.After(w.Start) {
			return false
		}
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}

// Daily последние 24 часа
func Daily(now time.Time) TimeWindow {
	return TimeWindow{Kind: WindowDaily, Start: now.Add(-24 * time.Hour)}
}

// Weekly начиная с понедельника 00:00 недели, в которую попадает now минус 7 дней
func Weekly(now time.Time) TimeWindow {
	ref := now.AddDate(0, 0, -7)
	sinceMonday := (int(ref.Weekday()) + 6) % 7
	monday := time.Date(ref.Year(), ref.Month(), ref.Day()-sinceMonday, 0, 0, 0, 0, ref.Location())
	return TimeWindow{Kind: WindowWeekly, Start: monday}
}

// Monthly последние 30 суток
func Monthly(now time.Time) TimeWindow {
	return TimeWindow{Kind: WindowMonthly, Start: now.Add(-30 * 24 * time.Hour)}
}

func AllTime() TimeWindow {
	return TimeWindow{Kind: WindowAllTime}
}

// CustomRange от 00:00:00.000 дня start до 23:59:59.999 дня end в часовом поясе loc
func CustomRange(start, end time.Time, loc *time.Location) (TimeWindow, error) {
	if loc == nil {
		loc = time.Local
	}
	start = start.In(loc)
	end = end.In(loc)

	from := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	to := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, int(999*time.Millisecond), loc)

	if to.Before(from) {
		return TimeWindow{}, fmt.Errorf("%w: %s is after %s", ErrInvalidDateRange, from.Format(DateLayout), to.Format(DateLayout))
	}

	return TimeWindow{Kind: WindowCustomRange, Start: from, End: to, StartInclusive: true}, nil
}

// ParseCustomRange разбирает даты вида 2024-01-31 в часовом поясе loc
func ParseCustomRange(start, end string, loc *time.Location) (TimeWindow, error) {
	if loc == nil {
		loc = time.Local
	}

	from, err := time.ParseInLocation(DateLayout, start, loc)
	if err != nil {
		return TimeWindow{}, fmt.Errorf("%w: start %q", ErrInvalidDateRange, start)
	}
	to, err := time.ParseInLocation(DateLayout, end, loc)
	if err != nil {
		return TimeWindow{}, fmt.Errorf("%w: end %q", ErrInvalidDateRange, end)
	}

	return CustomRange(from, to, loc)
}

// WindowFor строит скользящее окно указанного вида относительно now
func WindowFor(kind WindowKind, now time.Time) (TimeWindow, bool) {
	switch kind {
	case WindowDaily:
		return Daily(now), true
	case WindowWeekly:
		return Weekly(now), true
	case WindowMonthly:
		return Monthly(now), true
	case WindowAllTime:
		return AllTime(), true
	}
	return TimeWindow{}, false
}
