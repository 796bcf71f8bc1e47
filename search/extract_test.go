package search

import (
	"fmt"
	"strings"
	"testing"
)

func newTestExtractor(t *testing.T, max int) *Extractor {
	t.Helper()
	e, err := NewExtractor(Options{
		Selector:       "a.result__a",
		AllowedDomains: []string{"youtube.com", "youtu.be"},
		MaxResults:     max,
	})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	return e
}

func resultMarkup(hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><div id=\"links\">")
	for i, h := range hrefs {
		fmt.Fprintf(&b, `<div class="result"><a class="result__a" href="%s">Result %d</a></div>`, h, i)
	}
	b.WriteString("</div></body></html>")
	return b.String()
}

func TestExtract_OrderAndDedup(t *testing.T) {
	e := newTestExtractor(t, 10)

	markup := resultMarkup(
		"https://www.youtube.com/watch?v=first",
		"https://www.youtube.com/watch?v=second",
		"https://www.youtube.com/watch?v=first", // duplicate
		"https://youtu.be/third",
	)

	got := e.Extract(markup).URLs()
	want := []string{
		"https://www.youtube.com/watch?v=first",
		"https://www.youtube.com/watch?v=second",
		"https://youtu.be/third",
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d URLs, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("url[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExtract_FiltersForeignDomains(t *testing.T) {
	e := newTestExtractor(t, 10)

	markup := resultMarkup(
		"https://www.youtube.com/watch?v=keep",
		"https://vimeo.com/12345",
		"https://example.com/page?ref=youtube.com", // allow-listed token only in the query string
	)

	got := e.Extract(markup).URLs()
	if len(got) != 1 {
		t.Fatalf("expected 1 URL, got %d: %v", len(got), got)
	}
	if got[0] != "https://www.youtube.com/watch?v=keep" {
		t.Errorf("kept %q, want the youtube URL", got[0])
	}
}

func TestExtract_MaxResultsCap(t *testing.T) {
	e := newTestExtractor(t, 2)

	markup := resultMarkup(
		"https://www.youtube.com/watch?v=a",
		"https://www.youtube.com/watch?v=b",
		"https://www.youtube.com/watch?v=c",
	)

	got := e.Extract(markup).URLs()
	if len(got) != 2 {
		t.Fatalf("expected cap of 2, got %d: %v", len(got), got)
	}
	if got[0] != "https://www.youtube.com/watch?v=a" || got[1] != "https://www.youtube.com/watch?v=b" {
		t.Errorf("cap kept the wrong URLs: %v", got)
	}
}

func TestExtract_RedirectWrappedHref(t *testing.T) {
	e := newTestExtractor(t, 10)

	markup := resultMarkup(
		"//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.youtube.com%2Fwatch%3Fv%3Dabc123&rut=ff00",
	)

	got := e.Extract(markup).URLs()
	if len(got) != 1 {
		t.Fatalf("expected 1 URL, got %d: %v", len(got), got)
	}
	want := "https://www.youtube.com/watch?v=abc123"
	if got[0] != want {
		t.Errorf("decoded %q, want %q", got[0], want)
	}
}

func TestExtract_EmptyAndJunkMarkup(t *testing.T) {
	e := newTestExtractor(t, 10)

	cases := []struct {
		name   string
		markup string
	}{
		{"empty string", ""},
		{"no anchors", "<html><body><p>nothing here</p></body></html>"},
		{"anchor without href", `<a class="result__a">text</a>`},
		{"not html at all", "{\"json\": true}"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if n := e.Extract(tt.markup).Len(); n != 0 {
				t.Errorf("expected empty result set, got %d", n)
			}
		})
	}
}

func TestExtract_LiteSelectorVariant(t *testing.T) {
	e, err := NewExtractor(Options{
		Selector:       "a.result-link",
		AllowedDomains: []string{"youtube.com"},
		MaxResults:     10,
	})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}

	markup := `<table><tr><td><a class="result-link" href="https://www.youtube.com/watch?v=lite">title</a></td></tr></table>`
	got := e.Extract(markup).URLs()
	if len(got) != 1 || got[0] != "https://www.youtube.com/watch?v=lite" {
		t.Errorf("lite variant extraction failed: %v", got)
	}
}

func TestNewExtractor_RejectsBadOptions(t *testing.T) {
	cases := []struct {
		name string
		opts Options
	}{
		{"zero cap", Options{Selector: "a", AllowedDomains: []string{"youtube.com"}, MaxResults: 0}},
		{"empty allow list", Options{Selector: "a", AllowedDomains: nil, MaxResults: 5}},
		{"bad selector", Options{Selector: "a[", AllowedDomains: []string{"youtube.com"}, MaxResults: 5}},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewExtractor(tt.opts); err == nil {
				t.Error("expected an error, got nil")
			}
		})
	}
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name string
		href string
		want string
		ok   bool
	}{
		{
			"plain absolute",
			"https://www.youtube.com/watch?v=x",
			"https://www.youtube.com/watch?v=x",
			true,
		},
		{
			"protocol relative",
			"//example.com/x",
			"https://example.com/x",
			true,
		},
		{
			"redirect wrapped",
			"https://duckduckgo.com/l/?uddg=https%3A%2F%2Fyoutu.be%2Fdef&rut=aa",
			"https://youtu.be/def",
			true,
		},
		{
			"relative redirect wrapped",
			"/l/?uddg=https%3A%2F%2Fwww.youtube.com%2Fwatch%3Fv%3Dq%26t%3D5s",
			"https://www.youtube.com/watch?v=q&t=5s",
			true,
		},
		{"blank", "   ", "", false},
		{"unparsable", "https://%zz", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := canonicalURL(tt.href)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("canonicalURL(%q) = %q, want %q", tt.href, got, tt.want)
			}
		})
	}
}

func TestAllowed_HostMatching(t *testing.T) {
	e := newTestExtractor(t, 10)

	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.youtube.com/watch?v=x", true},
		{"https://music.youtube.com/watch?v=x", true},
		{"https://youtu.be/x", true},
		{"https://YOUTUBE.com/x", true},
		{"https://vimeo.com/x", false},
		{"https://evil.com/?u=https://youtube.com", false},
		{"not-a-url", false},
	}

	for _, tt := range tests {
		if got := e.allowed(tt.url); got != tt.want {
			t.Errorf("allowed(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
