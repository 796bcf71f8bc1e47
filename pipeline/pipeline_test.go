package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/syphon/config"
	"github.com/use-agent/syphon/models"
)

// fakeRunner counts invocations without launching anything.
type fakeRunner struct {
	calls [][]string
	fail  bool
}

func (f *fakeRunner) Run(ctx context.Context, bin string, args []string) error {
	f.calls = append(f.calls, args)
	if f.fail {
		return errors.New("exit status 1")
	}
	return nil
}

// resultPage renders a result page with the given hrefs and enough filler
// text to pass the interstitial heuristic.
func resultPage(hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><div id=\"links\">")
	filler := strings.Repeat("Relaxing instrumental piano for studying, sleeping and focus. ", 6)
	for i, h := range hrefs {
		fmt.Fprintf(&b, `<div class="result"><a class="result__a" href="%s">Result %d %s</a></div>`, h, i, filler)
	}
	if len(hrefs) == 0 {
		fmt.Fprintf(&b, "<p>%s</p>", filler)
	}
	b.WriteString("</div></body></html>")
	return b.String()
}

func testConfig(t *testing.T, searchEndpoint string) *config.Config {
	t.Helper()
	base := t.TempDir()
	return &config.Config{
		Search: config.SearchConfig{
			Endpoint:       searchEndpoint,
			Selector:       "a.result__a",
			SiteFilter:     "site:youtube.com",
			AllowedDomains: []string{"youtube.com", "youtu.be"},
			UserAgent:      "test-agent",
			Timeout:        5 * time.Second,
			MaxResults:     10,
		},
		Store: config.StoreConfig{
			ResultsFile: filepath.Join(base, "urls.txt"),
		},
		Tor: config.TorConfig{Enabled: false},
		Download: config.DownloadConfig{
			ToolBin:        "true", // always on PATH, never actually run
			AudioDir:       filepath.Join(base, "audio"),
			VideoDir:       filepath.Join(base, "video"),
			TranscriptDir:  filepath.Join(base, "transcripts"),
			SplitByQuery:   true,
			AudioFormat:    "mp3",
			SubtitleLang:   "en",
			SubtitleFormat: "txt",
		},
	}
}

func audioCollect(query string) models.CollectRequest {
	return models.CollectRequest{Query: query, Audio: true}
}

func TestRun_FullQueryRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(resultPage(
			"https://www.youtube.com/watch?v=one",
			"https://www.youtube.com/watch?v=two",
		)))
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	runner := &fakeRunner{}
	p, err := New(cfg, runner)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	outcome, err := p.Run(context.Background(), audioCollect("lofi beats"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.Summary.Discovered != 2 {
		t.Errorf("Discovered = %d, want 2", outcome.Summary.Discovered)
	}
	if outcome.Summary.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2", outcome.Summary.Succeeded)
	}
	if len(runner.calls) != 2 {
		t.Errorf("runner called %d times, want 2", len(runner.calls))
	}
	if outcome.Query != "lofi beats" {
		t.Errorf("Query = %q, want the original query", outcome.Query)
	}

	// The artifact holds exactly the discovered URLs.
	data, err := os.ReadFile(cfg.Store.ResultsFile)
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	want := "https://www.youtube.com/watch?v=one\nhttps://www.youtube.com/watch?v=two\n"
	if string(data) != want {
		t.Errorf("artifact = %q, want %q", string(data), want)
	}

	// Query runs nest the destination under the sanitized query.
	if _, err := os.Stat(filepath.Join(cfg.Download.AudioDir, "lofi_beats")); err != nil {
		t.Errorf("per-query audio directory missing: %v", err)
	}
}

func TestRun_NoResultsIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(resultPage("https://vimeo.com/nope")))
	}))
	defer srv.Close()

	p, err := New(testConfig(t, srv.URL), &fakeRunner{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.Run(context.Background(), audioCollect("lofi beats"))
	var ce *models.CollectError
	if !errors.As(err, &ce) {
		t.Fatalf("expected a CollectError, got %v", err)
	}
	if ce.Code != models.ErrCodeNoResults {
		t.Errorf("code = %q, want %q", ce.Code, models.ErrCodeNoResults)
	}
}

func TestRun_TransportFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	cfg := testConfig(t, endpoint)
	cfg.Search.Timeout = time.Second
	p, err := New(cfg, &fakeRunner{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.Run(context.Background(), audioCollect("lofi beats"))
	var ce *models.CollectError
	if !errors.As(err, &ce) {
		t.Fatalf("expected a CollectError, got %v", err)
	}
	if ce.Code != models.ErrCodeSearchTransport {
		t.Errorf("code = %q, want %q", ce.Code, models.ErrCodeSearchTransport)
	}
}

func TestRun_ListModeSkipsDiscoveryAndPersistence(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1") // must never be contacted
	runner := &fakeRunner{}
	p, err := New(cfg, runner)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req := models.CollectRequest{
		URLs:  []string{"https://youtu.be/a", "https://youtu.be/b"},
		Audio: true,
	}
	outcome, err := p.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(runner.calls) != 2 {
		t.Errorf("runner called %d times, want 2", len(runner.calls))
	}
	if outcome.Summary.Discovered != 2 {
		t.Errorf("Discovered = %d, want 2", outcome.Summary.Discovered)
	}
	if _, err := os.Stat(cfg.Store.ResultsFile); !os.IsNotExist(err) {
		t.Error("list mode wrote a result artifact")
	}
	// List runs use the base directories, no per-query nesting.
	if _, err := os.Stat(cfg.Download.AudioDir); err != nil {
		t.Errorf("base audio directory missing: %v", err)
	}
}

func TestRun_PreflightViolations(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	p, err := New(cfg, &fakeRunner{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []struct {
		name string
		req  models.CollectRequest
		want string
	}{
		{"no query", models.CollectRequest{Audio: true}, "query or url list"},
		{"no kinds", models.CollectRequest{Query: "x"}, "media kind"},
		{"negative cap", models.CollectRequest{Query: "x", Audio: true, MaxResults: -1}, "max results"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Run(context.Background(), tt.req)
			var ce *models.CollectError
			if !errors.As(err, &ce) {
				t.Fatalf("expected a CollectError, got %v", err)
			}
			if ce.Code != models.ErrCodeConfiguration {
				t.Errorf("code = %q, want %q", ce.Code, models.ErrCodeConfiguration)
			}
			if !strings.Contains(ce.Message, tt.want) {
				t.Errorf("message %q does not mention %q", ce.Message, tt.want)
			}
		})
	}
}

func TestRun_MissingToolIsConfigurationError(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Download.ToolBin = "definitely-not-installed-anywhere"
	p, err := New(cfg, &fakeRunner{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.Run(context.Background(), audioCollect("x"))
	var ce *models.CollectError
	if !errors.As(err, &ce) {
		t.Fatalf("expected a CollectError, got %v", err)
	}
	if ce.Code != models.ErrCodeConfiguration {
		t.Errorf("code = %q, want %q", ce.Code, models.ErrCodeConfiguration)
	}
}

func TestRun_DownloadFailuresDoNotFailTheRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(resultPage("https://www.youtube.com/watch?v=one")))
	}))
	defer srv.Close()

	p, err := New(testConfig(t, srv.URL), &fakeRunner{fail: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	outcome, err := p.Run(context.Background(), audioCollect("lofi beats"))
	if err != nil {
		t.Fatalf("Run returned an error for per-item failures: %v", err)
	}
	if outcome.Summary.Succeeded != 0 {
		t.Errorf("Succeeded = %d, want 0", outcome.Summary.Succeeded)
	}
	if outcome.Summary.FailuresByKind[models.KindAudio] != 1 {
		t.Errorf("audio failures = %d, want 1", outcome.Summary.FailuresByKind[models.KindAudio])
	}
}

func TestRun_UnwritableArtifactIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(resultPage("https://www.youtube.com/watch?v=one")))
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.Store.ResultsFile = filepath.Join(cfg.Store.ResultsFile, "nested", "urls.txt")
	p, err := New(cfg, &fakeRunner{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.Run(context.Background(), audioCollect("lofi beats"))
	var ce *models.CollectError
	if !errors.As(err, &ce) {
		t.Fatalf("expected a CollectError, got %v", err)
	}
	if ce.Code != models.ErrCodePersistence {
		t.Errorf("code = %q, want %q", ce.Code, models.ErrCodePersistence)
	}
}

func TestNew_BadSelectorFailsConstruction(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Search.Selector = "a["

	_, err := New(cfg, &fakeRunner{})
	var ce *models.CollectError
	if !errors.As(err, &ce) {
		t.Fatalf("expected a CollectError, got %v", err)
	}
	if ce.Code != models.ErrCodeConfiguration {
		t.Errorf("code = %q, want %q", ce.Code, models.ErrCodeConfiguration)
	}
}

func TestDiscover_RespectsCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(resultPage(
			"https://www.youtube.com/watch?v=a",
			"https://www.youtube.com/watch?v=b",
			"https://www.youtube.com/watch?v=c",
		)))
	}))
	defer srv.Close()

	p, err := New(testConfig(t, srv.URL), &fakeRunner{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	urls, err := p.Discover(context.Background(), "lofi beats", 2)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(urls) != 2 {
		t.Errorf("got %d URLs, want 2", len(urls))
	}
}

func TestFetchList_RequiresURLs(t *testing.T) {
	p, err := New(testConfig(t, "http://127.0.0.1:1"), &fakeRunner{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.FetchList(context.Background(), models.CollectRequest{Audio: true})
	var ce *models.CollectError
	if !errors.As(err, &ce) {
		t.Fatalf("expected a CollectError, got %v", err)
	}
	if ce.Code != models.ErrCodeConfiguration {
		t.Errorf("code = %q, want %q", ce.Code, models.ErrCodeConfiguration)
	}
}
