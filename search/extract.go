package search

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/use-agent/syphon/models"
)

// redirectParam is the backend's redirect-indirection query parameter: the
// true destination travels URL-encoded inside the result href.
const redirectParam = "uddg"

// Options configure an Extractor.
type Options struct {
	// Selector matches result anchors in the markup.
	Selector string

	// AllowedDomains keeps only hrefs whose host contains one of these
	// tokens. Substring matching tolerates the backend's subdomain
	// variance (www., music., m.).
	AllowedDomains []string

	// MaxResults caps the number of unique URLs collected. Must be > 0.
	MaxResults int
}

// Extractor turns raw search-result markup into a deduplicated,
// order-preserving ResultSet. The selector is compiled once at
// construction; a selector or option error surfaces there, and Extract
// itself never fails.
type Extractor struct {
	matcher cascadia.Selector
	opts    Options
}

// NewExtractor validates the options and compiles the anchor selector.
func NewExtractor(opts Options) (*Extractor, error) {
	if opts.MaxResults <= 0 {
		return nil, fmt.Errorf("search: max results must be positive, got %d", opts.MaxResults)
	}
	if len(opts.AllowedDomains) == 0 {
		return nil, fmt.Errorf("search: domain allow list must not be empty")
	}
	matcher, err := cascadia.Compile(opts.Selector)
	if err != nil {
		return nil, fmt.Errorf("search: compile selector %q: %w", opts.Selector, err)
	}
	return &Extractor{matcher: matcher, opts: opts}, nil
}

// Extract scans the markup for result anchors and returns the canonical,
// allow-listed URLs in first-seen order, capped at MaxResults. Markup
// anomalies (unparsable HTML, missing attributes, junk hrefs) yield an
// empty set, never an error; transport problems are the caller's to
// report separately.
func (e *Extractor) Extract(markup string) *models.ResultSet {
	results := models.NewResultSet()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return results
	}

	doc.FindMatcher(e.matcher).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return true
		}

		canonical, ok := canonicalURL(href)
		if !ok || !e.allowed(canonical) {
			return true
		}

		results.Add(canonical)
		return results.Len() < e.opts.MaxResults
	})

	return results
}

// canonicalURL normalizes one captured href: protocol-relative hrefs are
// pinned to https, and redirect-wrapped hrefs are replaced by the decoded
// destination they carry.
func canonicalURL(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	// Query().Get URL-decodes the wrapped destination in one step.
	if target := u.Query().Get(redirectParam); target != "" {
		href = target
	}

	return href, true
}

// allowed reports whether the URL's host contains one of the allow-listed
// domain tokens. Matching on the parsed host (not the raw string) keeps
// query-string mentions of an allowed domain from leaking foreign hosts in.
func (e *Extractor) allowed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Host)
	for _, domain := range e.opts.AllowedDomains {
		if strings.Contains(host, strings.ToLower(domain)) {
			return true
		}
	}
	return false
}
