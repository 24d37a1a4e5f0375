package eval

import (
	"net/url"
	"strings"
)

// significantParams lists, per host, the query keys that identify distinct
// content. Keys are kept in this order when rebuilding a context URL.
var significantParams = map[string][]string{
	"youtube.com":      {"v", "list"},
	"google.com":       {"q"},
	"bing.com":         {"q"},
	"duckduckgo.com":   {"q"},
	"baidu.com":        {"wd"},
	"search.yahoo.com": {"p"},
	"bilibili.com":     {"p"},
	"github.com":       {"q"},
	"reddit.com":       {"q"},
}

// BaseURL returns origin + path with query and fragment stripped.
// Anything that does not parse as an absolute URL is returned unchanged.
func BaseURL(raw string) string {
	u, ok := parseAbsolute(raw)
	if !ok {
		return raw
	}
	return origin(u) + pathOf(u)
}

// ContextURL is BaseURL, except that hosts listed in significantParams keep
// their significant query keys.
func ContextURL(raw string) string {
	u, ok := parseAbsolute(raw)
	if !ok {
		return raw
	}
	base := origin(u) + pathOf(u)

	keys, found := significantParams[trimHostPrefix(strings.ToLower(u.Hostname()))]
	if !found {
		return base
	}

	query := u.Query()
	var parts []string
	for _, key := range keys {
		if v := query.Get(key); v != "" {
			parts = append(parts, url.QueryEscape(key)+"="+url.QueryEscape(v))
		}
	}
	if len(parts) == 0 {
		return base
	}
	return base + "?" + strings.Join(parts, "&")
}

// SameBase reports whether two URLs share a base URL.
func SameBase(a, b string) bool {
	return BaseURL(a) == BaseURL(b)
}

func parseAbsolute(raw string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, false
	}
	return u, true
}

func origin(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "https" && port == "443") || (scheme == "http" && port == "80") {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		host += ":" + port
	}
	return scheme + "://" + host
}

func pathOf(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		return "/"
	}
	return p
}

func trimHostPrefix(host string) string {
	for _, prefix := range []string{"www.", "m."} {
		if strings.HasPrefix(host, prefix) {
			return host[len(prefix):]
		}
	}
	return host
}
