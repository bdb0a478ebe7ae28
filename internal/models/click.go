package models

import "time"

// Device categories assigned to click events from the User-Agent header.
const (
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceDesktop = "Desktop"
	DeviceBot     = "Bot"
	DeviceUnknown = "Unknown"
)

// ClickEvent is one resolution of a link. Rows are append-only and are
// removed only when the parent link is deleted.
type ClickEvent struct {
	ID     int64
	LinkID int64
	// OwnerID duplicates the parent link's owner for query convenience.
	OwnerID    string
	DeviceType string
	Referrer   string
	Country    string
	City       string
	// IsQRScan marks resolutions that originated from a QR code scan
	// rather than a typed or clicked link.
	IsQRScan  bool
	CreatedAt time.Time
}
