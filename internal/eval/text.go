package eval

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

// TitlesRelated reports whether two titles share at least two distinct
// words longer than three characters. Comparison is case-insensitive and
// only ASCII letters and digits count as word characters.
func TitlesRelated(a, b string) bool {
	left := titleWords(a)
	shared := 0
	for w := range titleWords(b) {
		if len(w) > 3 && left[w] {
			shared++
			if shared >= 2 {
				return true
			}
		}
	}
	return false
}

func titleWords(s string) map[string]bool {
	normalized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return ' '
		}
	}, strings.ToLower(s))

	words := make(map[string]bool)
	for _, w := range strings.Fields(normalized) {
		words[w] = true
	}
	return words
}

// ResponseLanguage names the language model replies should be written in.
func ResponseLanguage(locale string) string {
	if strings.HasPrefix(strings.ToLower(locale), "zh") {
		return "Chinese (简体中文)"
	}
	return "English"
}

// Truncate shortens s to at most max runes, ending in an ellipsis when cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}

// DisplayName is the short label used for the focus page inside a nudge.
func DisplayName(title, rawURL string) string {
	n := utf8.RuneCountInString(title)
	if n > 0 && n <= 60 {
		return Truncate(title, 40)
	}
	if u, ok := parseAbsolute(rawURL); ok {
		return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	}
	if title == "" {
		title = "your task"
	}
	return Truncate(title, 40)
}

// Hostname returns the lower-cased host of raw, or "" if it has none.
func Hostname(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
