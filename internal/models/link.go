package models

import "time"

// UTM holds the optional campaign tagging parameters attached to a link.
type UTM struct {
	Source   string
	Medium   string
	Campaign string
}

// Link represents a shortened URL and its associated metadata.
type Link struct {
	// ID is the unique identifier for the link record.
	ID int64
	// OwnerID is the identity of the user who created the link.
	// It is an opaque string supplied by the identity provider.
	OwnerID string
	// OriginalURL is the original, full-length URL that the short code points to.
	OriginalURL string
	// ShortCode is the path segment after /r/ identifying the link.
	// It is unique across all links, whether generated or user-chosen.
	ShortCode string
	// CustomCode reports whether the short code was chosen by the user
	// rather than generated.
	CustomCode bool
	// Clicks tracks the number of times the link has been resolved.
	Clicks int64
	// CampaignID references the campaign this link belongs to, if any.
	CampaignID *int64
	// QRDesignID references the QR code design attached to this link, if any.
	QRDesignID *int64
	// UTM holds the optional utm_* tagging parameters.
	UTM UTM
	// CreatedAt is the timestamp indicating when the link was created.
	CreatedAt time.Time
	// UpdatedAt is the timestamp indicating when the link was last updated.
	UpdatedAt time.Time
}

// QRDesign references a rendered QR code image for a link. The visual
// styling lives entirely in the external rendering service; the core only
// stores the reference.
type QRDesign struct {
	ID        int64
	LinkID    int64
	OwnerID   string
	ImageURL  string
	CreatedAt time.Time
}
