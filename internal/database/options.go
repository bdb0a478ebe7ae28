package database

import "github.com/shortify/shortify/internal/models"

// CreateLinkParams carries the column values for a new link row.
type CreateLinkParams struct {
	OwnerID     string
	OriginalURL string
	ShortCode   string
	CustomCode  bool
	CampaignID  *int64
	UTM         models.UTM
}

// ListOptions narrows and orders link listings.
type ListOptions struct {
	// SortBy is "created_at" or "clicks"; anything else falls back to created_at.
	SortBy string
	// Desc orders descending when true.
	Desc bool
	// Filter is a substring matched case-insensitively against the
	// original URL and the short code.
	Filter string
}
