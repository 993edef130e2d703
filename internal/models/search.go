package models

import (
	"strconv"
	"strings"
	"time"
)

// SearchField поле, по которому ищем в журнале кликов
type SearchField string

const (
	SearchByLinkID    SearchField = "linkId"
	SearchByTargetURL SearchField = "targetUrl"
	SearchByCount     SearchField = "count"
)

// RowKind дискриминант строки результата поиска
type RowKind string

const (
	RowKindClick RowKind = "click"
	RowKindLink  RowKind = "link"
)

const (
	DeviceUnknown = "unknown"
	DeviceOther   = "Other"
)

// ClickRow отдельный клик с разрешённой ссылкой
type ClickRow struct {
	EventID   string    `json:"event_id"`
	LinkID    string    `json:"link_id"`
	ShortURL  string    `json:"short_url"`
	TargetURL string    `json:"target_url"`
	ClickedAt time.Time `json:"clicked_at"`
	UserAgent string    `json:"user_agent,omitempty"`
	Referrer  string    `json:"referrer,omitempty"`
}

// LinkTotal суммарное количество кликов по ссылке
type LinkTotal struct {
	LinkID    string `json:"link_id"`
	ShortURL  string `json:"short_url"`
	TargetURL string `json:"target_url"`
	Count     int    `json:"count"`
}

// SearchRow строка результата поиска. Заполнено ровно одно из полей Click / Link, в зависимости от Kind.
type SearchRow struct {
	Kind  RowKind    `json:"kind"`
	Click *ClickRow  `json:"click,omitempty"`
	Link  *LinkTotal `json:"link,omitempty"`
}

func NewClickSearchRow(row ClickRow) SearchRow {
	return SearchRow{Kind: RowKindClick, Click: &row}
}

func NewLinkSearchRow(total LinkTotal) SearchRow {
	return SearchRow{Kind: RowKindLink, Link: &total}
}

// ClickedAtLayout формат времени клика в таблицах и CSV
const ClickedAtLayout = "2006/01/02 15:04:05"

// SearchColumns заголовки таблицы результатов поиска
var SearchColumns = []string{"Link ID", "Short URL", "Target URL", "Clicked At", "Device", "Referrer"}

// Cells отрисовывает строку в ячейки таблицы, общие для обоих видов строк
func (r SearchRow) Cells() []string {
	switch r.Kind {
	case RowKindClick:
		c := r.Click
		device := "-"
		if c.UserAgent != "" {
			device = DeviceFromUserAgent(c.UserAgent)
		}
		return []string{
			r.LinkID(),
			c.ShortURL,
			c.TargetURL,
			c.ClickedAt.Format(ClickedAtLayout),
			device,
			orDash(c.Referrer),
		}
	case RowKindLink:
		l := r.Link
		return []string{
			r.LinkID(),
			l.ShortURL,
			l.TargetURL,
			strconv.Itoa(l.Count) + " clicks",
			"-",
			"-",
		}
	}
	return []string{"-", "-", "-", "-", "-", "-"}
}

// LinkID возвращает идентификатор ссылки для строки любого вида
func (r SearchRow) LinkID() string {
	switch r.Kind {
	case RowKindClick:
		return r.Click.LinkID
	case RowKindLink:
		return r.Link.LinkID
	}
	return ""
}

// DeviceFromUserAgent грубо определяет платформу по User-Agent
func DeviceFromUserAgent(ua string) string {
	switch {
	case ua == "":
		return DeviceUnknown
	case strings.Contains(ua, "iPhone"), strings.Contains(ua, "iPad"):
		return "iOS"
	case strings.Contains(ua, "Android"):
		return "Android"
	case strings.Contains(ua, "Windows"):
		return "Windows"
	case strings.Contains(ua, "Mac"):
		return "Mac"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	}
	return DeviceOther
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
