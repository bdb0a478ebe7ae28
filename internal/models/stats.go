package models

// DateBucket holds the clicks recorded on one calendar date (UTC).
type DateBucket struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
	Scans  int64  `json:"scans"`
	Total  int64  `json:"total"`
}

// DeviceShare is one device category's slice of the total events.
// Percent is rounded, so shares are not guaranteed to sum to exactly 100.
type DeviceShare struct {
	Device  string `json:"device"`
	Count   int64  `json:"count"`
	Percent int    `json:"percent"`
}

// CountEntry is a generic name/count pair used for referrer and
// location breakdowns.
type CountEntry struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// LinkStats is the aggregated analytics view of a link's click events.
type LinkStats struct {
	TotalClicks int64         `json:"total_clicks"`
	TotalScans  int64         `json:"total_scans"`
	ByDate      []DateBucket  `json:"by_date"`
	ByDevice    []DeviceShare `json:"by_device"`
	ByReferrer  []CountEntry  `json:"by_referrer"`
	ByLocation  []CountEntry  `json:"by_location"`
	TopDate     *DateBucket   `json:"top_date"`
	TopLocation *CountEntry   `json:"top_location"`
}
