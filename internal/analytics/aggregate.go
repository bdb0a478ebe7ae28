// Package analytics derives breakdowns from raw click event rows.
// Everything here is a pure transformation; no I/O.
package analytics

import (
	"math"
	"sort"

	"github.com/shortify/shortify/internal/models"
)

const (
	directReferrer  = "Direct"
	unknownLocation = "Unknown"
)

// Aggregate builds the analytics view of a link from its click events.
// Dates are bucketed by UTC calendar day. An empty event set yields empty
// collections and nil top entries.
func Aggregate(events []models.ClickEvent) models.LinkStats {
	stats := models.LinkStats{
		ByDate:     []models.DateBucket{},
		ByDevice:   []models.DeviceShare{},
		ByReferrer: []models.CountEntry{},
		ByLocation: []models.CountEntry{},
	}

	if len(events) == 0 {
		return stats
	}

	dates := make(map[string]*models.DateBucket)
	devices := make(map[string]int64)
	referrers := make(map[string]int64)
	locations := make(map[string]int64)

	// Order of first encounter, used to break count ties deterministically.
	var deviceOrder, referrerOrder, locationOrder []string

	for _, ev := range events {
		if ev.IsQRScan {
			stats.TotalScans++
		} else {
			stats.TotalClicks++
		}

		date := ev.CreatedAt.UTC().Format("2006-01-02")
		bucket, ok := dates[date]
		if !ok {
			bucket = &models.DateBucket{Date: date}
			dates[date] = bucket
		}
		if ev.IsQRScan {
			bucket.Scans++
		} else {
			bucket.Clicks++
		}
		bucket.Total++

		device := ev.DeviceType
		if device == "" {
			device = models.DeviceUnknown
		}
		if _, ok := devices[device]; !ok {
			deviceOrder = append(deviceOrder, device)
		}
		devices[device]++

		referrer := ev.Referrer
		if referrer == "" {
			referrer = directReferrer
		}
		if _, ok := referrers[referrer]; !ok {
			referrerOrder = append(referrerOrder, referrer)
		}
		referrers[referrer]++

		location := ev.Country
		if location == "" {
			location = ev.City
		}
		if location == "" {
			location = unknownLocation
		}
		if _, ok := locations[location]; !ok {
			locationOrder = append(locationOrder, location)
		}
		locations[location]++
	}

	for date := range dates {
		stats.ByDate = append(stats.ByDate, *dates[date])
	}
	sort.Slice(stats.ByDate, func(i, j int) bool {
		return stats.ByDate[i].Date < stats.ByDate[j].Date
	})

	total := stats.TotalClicks + stats.TotalScans

	for _, device := range deviceOrder {
		count := devices[device]
		stats.ByDevice = append(stats.ByDevice, models.DeviceShare{
			Device:  device,
			Count:   count,
			Percent: int(math.Round(float64(count) / float64(total) * 100)),
		})
	}
	sortByCount(stats.ByDevice, func(s models.DeviceShare) int64 { return s.Count })

	stats.ByReferrer = countEntries(referrers, referrerOrder)
	stats.ByLocation = countEntries(locations, locationOrder)

	top := stats.ByDate[0]
	for _, bucket := range stats.ByDate[1:] {
		if bucket.Total > top.Total {
			top = bucket
		}
	}
	stats.TopDate = &top

	topLocation := stats.ByLocation[0]
	stats.TopLocation = &topLocation

	return stats
}

// countEntries turns a count map into a slice sorted descending by count,
// ties kept in first-encountered order.
func countEntries(counts map[string]int64, order []string) []models.CountEntry {
	entries := make([]models.CountEntry, 0, len(order))
	for _, name := range order {
		entries = append(entries, models.CountEntry{Name: name, Count: counts[name]})
	}
	sortByCount(entries, func(e models.CountEntry) int64 { return e.Count })
	return entries
}

func sortByCount[T any](s []T, count func(T) int64) {
	sort.SliceStable(s, func(i, j int) bool {
		return count(s[i]) > count(s[j])
	})
}
