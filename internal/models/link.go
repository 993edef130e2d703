package models

import (
	"time"
)

// UnknownTargetURL подставляется вместо адреса назначения, когда клик ссылается на удалённую ссылку
const UnknownTargetURL = "unknown URL"

type Link struct {
	ID              string    `json:"id"`
	AffiliateURL    string    `json:"affiliate_url"`
	PixelCode       string    `json:"pixel_code,omitempty"`
	CompletePayment bool      `json:"complete_payment"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type CreateLinkInput struct {
	ShortID         string `json:"short_id" binding:"required"`
	AffiliateURL    string `json:"affiliate_url" binding:"required"`
	PixelCode       string `json:"pixel_code,omitempty"`
	CompletePayment bool   `json:"complete_payment"`
}

type UpdateLinkInput struct {
	AffiliateURL    *string `json:"affiliate_url,omitempty"`
	PixelCode       *string `json:"pixel_code,omitempty"`
	CompletePayment *bool   `json:"complete_payment,omitempty"`
}

// LinkSortField колонка сортировки списка ссылок
type LinkSortField string

const (
	SortByCreatedAt    LinkSortField = "created_at"
	SortByID           LinkSortField = "id"
	SortByAffiliateURL LinkSortField = "affiliate_url"
)

type LinkListOptions struct {
	SortField LinkSortField
	Ascending bool
}

type LinkPage struct {
	Links      []Link `json:"links"`
	Page       int    `json:"page"`
	PerPage    int    `json:"per_page"`
	TotalPages int    `json:"total_pages"`
	TotalItems int    `json:"total_items"`
}

type PixelDiagnostics struct {
	LinkID          string `json:"link_id"`
	HasTikTok       bool   `json:"has_tiktok"`
	HasScriptTag    bool   `json:"has_script_tag"`
	HasTrackCall    bool   `json:"has_track_call"`
	HasLoadCall     bool   `json:"has_load_call"`
	PixelID         string `json:"pixel_id,omitempty"`
	ScriptCount     int    `json:"script_count"`
	CompletePayment bool   `json:"complete_payment"`
}
