package models

import "net/url"

// DomainOf extracts the lowercase host from a URL string, stripping a
// leading "www." label. Returns "" for unparseable input — callers treat
// that as "no domain" rather than an error, since this is used only for
// diversity heuristics, never for correctness-critical dispatch.
func DomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := u.Hostname()
	if len(host) > 4 && host[:4] == "www." {
		host = host[4:]
	}
	return host
}
