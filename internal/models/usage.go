package models

import "time"

// CounterKind identifies one of the quota counters tracked per user.
type CounterKind string

const (
	CounterLinks            CounterKind = "links"
	CounterQRCodes          CounterKind = "qrCodes"
	CounterCustomBackhalves CounterKind = "customBackhalves"
)

// UsageCounters is the per-user quota ledger for the current usage period.
type UsageCounters struct {
	ID                   int64
	UserID               string
	LinksUsed            int64
	QRCodesUsed          int64
	CustomBackhalvesUsed int64
	LastReset            time.Time
}

// Used returns the current value of the counter identified by kind.
func (u *UsageCounters) Used(kind CounterKind) int64 {
	switch kind {
	case CounterLinks:
		return u.LinksUsed
	case CounterQRCodes:
		return u.QRCodesUsed
	case CounterCustomBackhalves:
		return u.CustomBackhalvesUsed
	default:
		return 0
	}
}
