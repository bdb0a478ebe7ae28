package service

import (
	"strings"

	"github.com/shortify/shortify/internal/models"
)

// ClassifyDevice buckets a User-Agent string into a coarse device
// category. Best effort; anything unrecognized is Unknown.
func ClassifyDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)

	switch {
	case ua == "":
		return models.DeviceUnknown
	case strings.Contains(ua, "bot"),
		strings.Contains(ua, "crawler"),
		strings.Contains(ua, "spider"):
		return models.DeviceBot
	case strings.Contains(ua, "ipad"),
		strings.Contains(ua, "tablet"):
		return models.DeviceTablet
	case strings.Contains(ua, "mobile"),
		strings.Contains(ua, "iphone"),
		strings.Contains(ua, "android"):
		return models.DeviceMobile
	case strings.Contains(ua, "windows"),
		strings.Contains(ua, "macintosh"),
		strings.Contains(ua, "x11"),
		strings.Contains(ua, "linux"):
		return models.DeviceDesktop
	default:
		return models.DeviceUnknown
	}
}
