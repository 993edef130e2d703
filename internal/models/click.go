package models

import (
	"time"
)

type ClickEvent struct {
	ID        string    `json:"id"`
	LinkID    string    `json:"link_id"`
	ClickedAt time.Time `json:"clicked_at"`
	UserAgent string    `json:"user_agent,omitempty"`
	Referrer  string    `json:"referrer,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
}

// ClickRequest данные запроса редиректа, которые передаются в процессор кликов
type ClickRequest struct {
	LinkID    string
	IPAddress string
	UserAgent string
	Referrer  string
}

type RankingEntry struct {
	Rank        int        `json:"rank"`
	LinkID      string     `json:"link_id"`
	Count       int        `json:"count"`
	ShortURL    string     `json:"short_url"`
	TargetURL   string     `json:"target_url"`
	LastClicked *time.Time `json:"last_clicked,omitempty"`
}
