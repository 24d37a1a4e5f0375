package eval

import (
	"strings"
	"time"
)

// MissingTabAge is assumed for tabs with no recorded open time, so the
// per-tab gate does not block nudges on tabs that predate the daemon.
const MissingTabAge = 60 * time.Second

// MatchDomain reports whether the host of rawURL matches any pattern.
// "*.example.com" matches example.com and every host ending in it; a bare
// pattern matches the host exactly or any of its subdomains.
func MatchDomain(rawURL string, patterns []string) bool {
	host := Hostname(rawURL)
	if host == "" {
		return false
	}
	for _, p := range patterns {
		if matchPattern(host, p) {
			return true
		}
	}
	return false
}

func matchPattern(host, pattern string) bool {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return false
	}
	if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
		return host == suffix || strings.HasSuffix(host, "."+suffix)
	}
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}

// ShouldNudgeTab is the per-tab gate: a tab must have been open for longer
// than minAge before a nudge may target it.
func ShouldNudgeTab(openedAt time.Time, known bool, now time.Time, minAge time.Duration) bool {
	if !known || openedAt.IsZero() {
		openedAt = now.Add(-MissingTabAge)
	}
	return now.Sub(openedAt) > minAge
}

// CooldownElapsed reports whether at least cooldown has passed since last.
// A zero last means no nudge has been delivered yet.
func CooldownElapsed(last, now time.Time, cooldown time.Duration) bool {
	if last.IsZero() {
		return true
	}
	return now.Sub(last) >= cooldown
}
