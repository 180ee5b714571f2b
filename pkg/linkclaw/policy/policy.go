// Package policy implements the per-guild allow-policy store for LinkClaw.
// Each guild (tenant) carries an allow-list of domains and file extensions
// that gate which links are eligible for rewrite. The whole collection is
// persisted as a single JSON document keyed by guild id.
package policy

import (
	"net/url"
	"path"
	"sort"
	"strings"
)

// TenantPolicy is one guild's allow-lists. Domains are stored lower-cased
// without scheme, port, or path. Extensions are stored lower-cased with a
// leading dot. Both lists are deduplicated.
type TenantPolicy struct {
	Domains    []string `json:"allowedDomains"`
	Extensions []string `json:"allowedExtensions"`
}

// Document is the full persisted collection, keyed by guild id.
// It is read-modify-written as a single unit on every mutation.
type Document map[string]*TenantPolicy

// DefaultExtensions are granted to a guild on first reference.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webm", ".mp4"}

// AllowsDomain reports whether host or rootDomain is in the allow-list.
// The root domain acts as a coarser fallback when the exact host is not
// explicitly listed.
func (p *TenantPolicy) AllowsDomain(host, rootDomain string) bool {
	host = strings.ToLower(host)
	rootDomain = strings.ToLower(rootDomain)
	for _, d := range p.Domains {
		if d == host || d == rootDomain {
			return true
		}
	}
	return false
}

// AllowsExtension reports whether ext (normalized) is in the allow-list.
func (p *TenantPolicy) AllowsExtension(ext string) bool {
	ext = NormalizeExtension(ext)
	if ext == "" {
		return false
	}
	for _, e := range p.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func (p *TenantPolicy) clone() *TenantPolicy {
	cp := &TenantPolicy{
		Domains:    append([]string(nil), p.Domains...),
		Extensions: append([]string(nil), p.Extensions...),
	}
	return cp
}

// NormalizeDomain lower-cases a domain and strips any scheme, credentials,
// port, and path the user may have pasted along with it.
func NormalizeDomain(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return ""
	}
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
	}
	// Bare "host/path" or "host:port" forms.
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, ":"); i >= 0 && !strings.Contains(s, "]") {
		s = s[:i]
	}
	return s
}

// NormalizeExtension lower-cases an extension and ensures a leading dot.
// A bare dot or empty input normalizes to "".
func NormalizeExtension(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimPrefix(s, ".")
	if s == "" {
		return ""
	}
	// Guard against "file.ext" style input: keep only the extension part.
	if e := path.Ext(s); e != "" {
		s = strings.TrimPrefix(e, ".")
	}
	return "." + s
}

// addValue inserts v into list if absent, returning the new list and
// whether membership changed. The list stays sorted for stable output.
func addValue(list []string, v string) ([]string, bool) {
	for _, e := range list {
		if e == v {
			return list, false
		}
	}
	list = append(list, v)
	sort.Strings(list)
	return list, true
}

// removeValue deletes v from list, returning the new list and whether
// membership changed.
func removeValue(list []string, v string) ([]string, bool) {
	for i, e := range list {
		if e == v {
			return append(list[:i], list[i+1:]...), true
		}
	}
	return list, false
}
