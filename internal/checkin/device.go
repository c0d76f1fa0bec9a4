package checkin

import "strings"

// DeviceInfo summarizes a User-Agent as "OS - Browser (Mobile|Desktop)" for audit entries.
func DeviceInfo(userAgent string) string {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return "Unknown Device"
	}

	osName := "Unknown OS"
	switch {
	case strings.Contains(ua, "iphone"):
		osName = "iPhone"
	case strings.Contains(ua, "ipad"):
		osName = "iPad"
	case strings.Contains(ua, "android"):
		osName = "Android"
	case strings.Contains(ua, "windows"):
		osName = "Windows"
	case strings.Contains(ua, "macintosh"), strings.Contains(ua, "mac os"):
		osName = "Mac"
	case strings.Contains(ua, "linux"):
		osName = "Linux"
	}

	browser := "Unknown Browser"
	switch {
	case strings.Contains(ua, "edg/"), strings.Contains(ua, "edge"):
		browser = "Edge"
	case strings.Contains(ua, "opr/"), strings.Contains(ua, "opera"):
		browser = "Opera"
	case strings.Contains(ua, "chrome") && strings.Contains(ua, "safari"):
		browser = "Chrome"
	case strings.Contains(ua, "firefox"):
		browser = "Firefox"
	case strings.Contains(ua, "safari"):
		browser = "Safari"
	}

	kind := "Desktop"
	for _, m := range []string{"mobile", "android", "iphone", "ipad"} {
		if strings.Contains(ua, m) {
			kind = "Mobile"
			break
		}
	}
	return osName + " - " + browser + " (" + kind + ")"
}
