package search

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// interstitialMarkers are substrings that identify the backend's bot
// interstitials. The list tracks the backend's current markup and is
// matched case-insensitively against the raw page.
var interstitialMarkers = []string{
	"anomaly-modal",
	"unfortunately, bots use duckduckgo too",
	"challenge-form",
	"captcha",
	"please enable javascript",
}

// blocked reports whether the markup looks like a bot interstitial rather
// than a result page, with a short reason for logging.
func blocked(body []byte) (string, bool) {
	lower := strings.ToLower(string(body))
	for _, marker := range interstitialMarkers {
		if strings.Contains(lower, marker) {
			return marker, true
		}
	}

	// A result page always carries a meaningful amount of visible text;
	// a near-empty body means the backend withheld results.
	if len(visibleText(body)) < 200 {
		return "near-empty page", true
	}

	return "", false
}

// visibleText extracts the visible text from within <body>, stripping all
// tags and <script>/<style> content. Used for heuristic analysis only.
func visibleText(body []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	var buf strings.Builder
	inBody := false
	skipDepth := 0

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return buf.String()
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			tag := string(tn)
			if tag == "body" {
				inBody = true
			}
			if tag == "script" || tag == "style" || tag == "noscript" {
				skipDepth++
			}
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			tag := string(tn)
			if tag == "script" || tag == "style" || tag == "noscript" {
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if inBody && skipDepth == 0 {
				text := strings.TrimSpace(string(tokenizer.Text()))
				if text != "" {
					buf.WriteString(text)
					buf.WriteByte(' ')
				}
			}
		}
	}
}
