// Package device derives human-readable device descriptions from raw
// User-Agent strings for the session detail view.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// Kind buckets a session's client for display and filtering.
type Kind string

const (
	KindDesktop Kind = "desktop"
	KindMobile  Kind = "mobile"
	KindBot     Kind = "bot"
	KindUnknown Kind = "unknown"
)

// ParseUserAgent renders a raw User-Agent as "Browser on OS", the form the
// console shows next to a session ("Chrome on Mac OS X", "Safari on
// iPhone"). Unparseable parts fall back to Unknown placeholders instead of
// leaving a half-empty string.
func ParseUserAgent(raw string) string {
	if raw == "" {
		return "Unknown Device"
	}

	ua := useragent.New(raw)

	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}

	// Mobile agents carry the device name in Platform, not OS.
	platform := ua.OS()
	if ua.Mobile() {
		if p := ua.Platform(); p != "" {
			platform = p
		}
	}
	if platform == "" {
		platform = "Unknown OS"
	}

	return strings.TrimSpace(browser + " on " + platform)
}

// Classify buckets the user agent for session list grouping.
func Classify(raw string) Kind {
	if raw == "" {
		return KindUnknown
	}
	ua := useragent.New(raw)
	switch {
	case ua.Bot():
		return KindBot
	case ua.Mobile():
		return KindMobile
	default:
		return KindDesktop
	}
}
