// Package scanner extracts candidate links from raw message text and
// classifies them by host, root domain, and file extension. Scanning is a
// pure function of the input text and a compiled pattern; no match state is
// kept between calls.
package scanner

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Candidate is one not-yet-validated URL occurrence inside a message.
type Candidate struct {
	// RawText is the exact substring matched in the message.
	RawText string

	// URL is the parsed, absolute URL.
	URL string

	// Host is the URL authority without credentials or port.
	Host string

	// RootDomain is the last two dot-separated labels of Host
	// (i.4cdn.org -> 4cdn.org).
	RootDomain string

	// Extension is the path's file extension, lower-cased, "" if none.
	Extension string
}

// genericURL matches any http(s) URL up to whitespace or common message
// punctuation. Used when per-tenant policy governs filtering.
var genericURL = regexp.MustCompile(`(?i)https?://[^\s<>"'` + "`" + `]+`)

// URLPattern returns the generic any-URL pattern.
func URLPattern() *regexp.Regexp { return genericURL }

// CDNPattern builds a domain-anchored pattern from a CSV of CDN domains.
// It matches, case-insensitively, URLs under those hosts with an optional
// path suffix of word, slash, dot, and dash characters.
func CDNPattern(domainsCSV string) (*regexp.Regexp, error) {
	var alts []string
	for _, d := range strings.Split(domainsCSV, ",") {
		d = strings.TrimSpace(strings.ToLower(d))
		if d == "" {
			continue
		}
		alts = append(alts, regexp.QuoteMeta(d))
	}
	if len(alts) == 0 {
		return nil, fmt.Errorf("no CDN domains in %q", domainsCSV)
	}
	expr := `(?i)https?://(?:` + strings.Join(alts, "|") + `)(?:/[\w./-]*)?`
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling CDN pattern: %w", err)
	}
	return re, nil
}

// Scan applies a single pattern pass over text, returning candidates in
// left-to-right order of appearance. Repeated substrings produce separate
// candidates. Matches that do not parse as URLs are skipped.
func Scan(text string, re *regexp.Regexp) []Candidate {
	var out []Candidate
	for _, raw := range re.FindAllString(text, -1) {
		c, ok := classify(raw)
		if !ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

// classify parses a matched substring into a Candidate.
func classify(raw string) (Candidate, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return Candidate{}, false
	}
	host := strings.ToLower(u.Hostname())
	return Candidate{
		RawText:    raw,
		URL:        raw,
		Host:       host,
		RootDomain: RootDomain(host),
		Extension:  strings.ToLower(path.Ext(u.Path)),
	}, true
}

// RootDomain returns the last two dot-separated labels of host, or host
// itself when it has fewer than two labels.
func RootDomain(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}
