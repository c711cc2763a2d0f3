// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package identity

import (
	"strings"

	"github.com/launchdeck/viewtrack/internal/models"
)

// ClassifyDevice maps a User-Agent header to the closed device set.
// Tablets are checked before mobile because Android tablet UAs also carry
// mobile markers.
func ClassifyDevice(userAgent string) models.Device {
	if userAgent == "" {
		return models.DeviceOther
	}
	ua := strings.ToLower(userAgent)

	switch {
	case strings.Contains(ua, "ipad"),
		strings.Contains(ua, "tablet"),
		strings.Contains(ua, "kindle"),
		strings.Contains(ua, "silk/"),
		isAndroidTablet(ua):
		return models.DeviceTablet

	case strings.Contains(ua, "mobi"),
		strings.Contains(ua, "iphone"),
		strings.Contains(ua, "ipod"),
		strings.Contains(ua, "android"),
		strings.Contains(ua, "windows phone"):
		return models.DeviceMobile

	case strings.Contains(ua, "windows nt"),
		strings.Contains(ua, "macintosh"),
		strings.Contains(ua, "x11"),
		strings.Contains(ua, "cros"),
		strings.Contains(ua, "linux"):
		return models.DeviceDesktop

	default:
		return models.DeviceOther
	}
}

// isAndroidTablet reports an Android UA without the "Mobile" token, which is
// how Android distinguishes tablets from phones.
func isAndroidTablet(ua string) bool {
	return strings.Contains(ua, "android") && !strings.Contains(ua, "mobile")
}
