// Package cookiepolicy decides whether a stored cookie applies to a target
// URL, independent of any browser. The rules mirror RFC 6265 applicability:
// domain-match with leading-dot stripping, path-prefix match, and secure
// cookies restricted to encrypted schemes.
package cookiepolicy

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Record is one stored cookie, immutable after load. SameSite is parsed so
// the loader accepts real browser exports, but it is intentionally dropped
// before seeding: it only affects browser-internal send policy, and an
// out-of-range value would make the browser API reject the whole cookie.
type Record struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Secure   bool   `json:"secure"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
	SameSite string `json:"sameSite,omitempty"`
}

// Target is the comparison basis derived from a target URL.
type Target struct {
	Scheme string
	Host   string
	Path   string
}

// TargetFromURL derives a Target from a raw URL. An empty path becomes "/".
func TargetFromURL(raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("parsing target URL: %w", err)
	}
	if u.Hostname() == "" {
		return Target{}, fmt.Errorf("target URL %q has no host", raw)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return Target{Scheme: u.Scheme, Host: u.Hostname(), Path: path}, nil
}

// Applies reports whether the cookie may be seeded for the target.
func Applies(c Record, t Target) bool {
	if !domainMatch(c.Domain, t.Host) {
		return false
	}
	if !pathMatch(c.Path, t.Path) {
		return false
	}
	if c.Secure && t.Scheme != "https" {
		return false
	}
	return true
}

// domainMatch strips a leading dot from the cookie domain and matches the
// host exactly or as a strict subdomain. An empty domain fails closed.
func domainMatch(cookieDomain, host string) bool {
	if cookieDomain == "" {
		return false
	}
	cd := strings.ToLower(strings.TrimPrefix(cookieDomain, "."))
	h := strings.ToLower(host)
	return h == cd || strings.HasSuffix(h, "."+cd)
}

// pathMatch treats an empty cookie path as matching everything; otherwise
// the cookie path, rooted with a slash, must prefix the request path on a
// segment boundary (RFC 6265 §5.1.4): equal, prefix ending in a slash, or
// the request path continuing with a slash right after the prefix. "/api"
// matches "/api" and "/api/v2" but not "/apiextra".
func pathMatch(cookiePath, requestPath string) bool {
	if cookiePath == "" {
		return true
	}
	if !strings.HasPrefix(cookiePath, "/") {
		cookiePath = "/" + cookiePath
	}
	if !strings.HasPrefix(requestPath, cookiePath) {
		return false
	}
	return requestPath == cookiePath ||
		strings.HasSuffix(cookiePath, "/") ||
		requestPath[len(cookiePath)] == '/'
}

// Load reads a JSON array of cookie records. A missing file yields an empty
// set and no error; a malformed file is an error so the caller can degrade.
func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cookie file %s: %w", path, err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing cookie file %s: %w", path, err)
	}
	return records, nil
}
