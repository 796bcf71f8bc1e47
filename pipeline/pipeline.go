// Package pipeline orchestrates one collection run: preflight checks,
// discovery, artifact persistence, sequential dispatch, and the final
// outcome. It owns the error taxonomy: configuration, transport,
// empty-result, and persistence problems abort a run; per-URL download
// and rotation problems are absorbed into the outcome.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/use-agent/syphon/config"
	"github.com/use-agent/syphon/dispatch"
	"github.com/use-agent/syphon/identity"
	"github.com/use-agent/syphon/models"
	"github.com/use-agent/syphon/search"
	"github.com/use-agent/syphon/store"
	"github.com/use-agent/syphon/webhook"
)

// Searcher is the pipeline's view of the discovery backend.
type Searcher interface {
	Search(ctx context.Context, query string) (string, search.Provider, error)
	Providers() []search.Provider
}

// Pipeline wires the discovery, persistence, rotation, and dispatch
// stages behind two entry points: Run for full runs and Discover for
// search-only calls.
type Pipeline struct {
	cfg        *config.Config
	searcher   Searcher
	dispatcher *dispatch.Dispatcher
	rotator    *identity.Rotator
}

// New builds a Pipeline from the configuration. Both provider selectors
// are compiled here so a broken selector fails construction instead of a
// run. A nil runner selects real subprocess execution.
func New(cfg *config.Config, runner dispatch.Runner) (*Pipeline, error) {
	socksAddr := ""
	if cfg.Tor.Enabled {
		socksAddr = cfg.Tor.SocksAddr
	}
	client := search.NewClient(cfg.Search, socksAddr)

	for _, p := range client.Providers() {
		if _, err := newProviderExtractor(cfg.Search, p, cfg.Search.MaxResults); err != nil {
			return nil, models.NewCollectError(models.ErrCodeConfiguration,
				fmt.Sprintf("provider %s has an invalid result selector", p.Name), err)
		}
	}

	var rotator *identity.Rotator
	if cfg.Tor.Enabled {
		rotator = identity.NewRotator(cfg.Tor)
	}

	return &Pipeline{
		cfg:        cfg,
		searcher:   client,
		dispatcher: dispatch.NewDispatcher(cfg.Download, runner, rotator),
		rotator:    rotator,
	}, nil
}

// Run executes one full collection: discover (or take the explicit list),
// persist, dispatch, finalize. The returned outcome is non-nil exactly
// when the run got as far as dispatch.
func (p *Pipeline) Run(ctx context.Context, req models.CollectRequest) (*models.RunOutcome, error) {
	req.Defaults()

	dirs := p.targetDirs(req)
	if err := p.preflight(req, dirs); err != nil {
		return nil, err
	}

	var urls []string
	if req.ListMode() {
		urls = req.URLs
		slog.Info("dispatching explicit url list", "count", len(urls))
	} else {
		discovered, err := p.Discover(ctx, req.Query, req.MaxResults)
		if err != nil {
			return nil, err
		}
		urls = discovered

		count, err := store.Write(p.cfg.Store.ResultsFile, urls)
		if err != nil {
			return nil, models.NewCollectError(models.ErrCodePersistence,
				"cannot write result artifact", err)
		}
		slog.Info("results persisted", "file", p.cfg.Store.ResultsFile, "count", count)
	}

	outcome := p.dispatcher.DispatchAll(ctx, p.downloadRequests(req, dirs, urls), p.shouldRotate(req))
	outcome.Query = req.Query

	p.notify(outcome)
	return outcome, nil
}

// Discover searches for the query and returns up to max unique candidate
// URLs. Zero surviving URLs is an error distinct from the backend being
// unreachable.
func (p *Pipeline) Discover(ctx context.Context, query string, max int) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.NewCollectError(models.ErrCodeConfiguration,
			"query must not be empty", nil)
	}
	if max <= 0 {
		max = p.cfg.Search.MaxResults
	}

	markup, provider, err := p.searcher.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	extractor, err := newProviderExtractor(p.cfg.Search, provider, max)
	if err != nil {
		// Selectors were validated at construction; reaching this means
		// the configuration changed underneath us.
		return nil, models.NewCollectError(models.ErrCodeConfiguration,
			"result selector no longer compiles", err)
	}

	results := extractor.Extract(markup)
	if results.Len() == 0 {
		return nil, models.NewCollectError(models.ErrCodeNoResults,
			fmt.Sprintf("no results found for %q", query), nil)
	}

	slog.Info("discovery complete",
		"query", query,
		"provider", provider.Name,
		"count", results.Len(),
	)
	return results.URLs(), nil
}

// FetchList dispatches an explicit URL list, skipping discovery and
// persistence. The request must carry at least one URL.
func (p *Pipeline) FetchList(ctx context.Context, req models.CollectRequest) (*models.RunOutcome, error) {
	if !req.ListMode() {
		return nil, models.NewCollectError(models.ErrCodeConfiguration,
			"url list must not be empty", nil)
	}
	return p.Run(ctx, req)
}

// preflight validates everything that must hold before the first
// invocation. All violations are reported together.
func (p *Pipeline) preflight(req models.CollectRequest, dirs kindDirs) error {
	var problems []string

	if !req.ListMode() && strings.TrimSpace(req.Query) == "" {
		problems = append(problems, "query or url list required")
	}
	if req.MaxResults <= 0 {
		problems = append(problems, "max results must be positive")
	}
	if !req.Audio && !req.Video && !req.Transcript {
		problems = append(problems, "select at least one media kind")
	}

	if _, err := exec.LookPath(p.cfg.Download.ToolBin); err != nil {
		problems = append(problems, fmt.Sprintf("download tool %q not found", p.cfg.Download.ToolBin))
	}

	if p.cfg.Tor.Enabled {
		conn, err := net.DialTimeout("tcp", p.cfg.Tor.SocksAddr, p.cfg.Tor.DialTimeout)
		if err != nil {
			problems = append(problems, fmt.Sprintf("socks proxy %s unreachable", p.cfg.Tor.SocksAddr))
		} else {
			conn.Close()
		}
	}

	if err := ensureDirs(req, dirs); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return models.NewCollectError(models.ErrCodeConfiguration,
			strings.Join(problems, "; "), nil)
	}
	return nil
}

// shouldRotate resolves the per-run rotation flag: the request overrides
// the configuration, and rotation requires routing to be enabled at all.
func (p *Pipeline) shouldRotate(req models.CollectRequest) bool {
	if !p.cfg.Tor.Enabled {
		return false
	}
	if req.Rotate != nil {
		return *req.Rotate
	}
	return p.cfg.Tor.RotatePerURL
}

// kindDirs holds the resolved destination directory per media kind.
type kindDirs struct {
	audio      string
	video      string
	transcript string
}

// targetDirs resolves the destination tree for this run. Query runs nest
// one level deeper under a directory named after the sanitized query;
// list runs land in the base directories.
func (p *Pipeline) targetDirs(req models.CollectRequest) kindDirs {
	d := kindDirs{
		audio:      p.cfg.Download.AudioDir,
		video:      p.cfg.Download.VideoDir,
		transcript: p.cfg.Download.TranscriptDir,
	}
	if p.cfg.Download.SplitByQuery && !req.ListMode() {
		sub := sanitizeQueryDir(req.Query)
		d.audio = filepath.Join(d.audio, sub)
		d.video = filepath.Join(d.video, sub)
		d.transcript = filepath.Join(d.transcript, sub)
	}
	return d
}

// ensureDirs creates the destination directories for the selected kinds.
func ensureDirs(req models.CollectRequest, dirs kindDirs) error {
	targets := map[string]bool{}
	if req.Audio {
		targets[dirs.audio] = true
	}
	if req.Video {
		targets[dirs.video] = true
	}
	if req.Transcript {
		targets[dirs.transcript] = true
	}
	for dir := range targets {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cannot create destination %s: %w", dir, err)
		}
	}
	return nil
}

// downloadRequests expands the run request into one DownloadRequest per URL.
func (p *Pipeline) downloadRequests(req models.CollectRequest, dirs kindDirs, urls []string) []models.DownloadRequest {
	proxyURL := ""
	if p.cfg.Tor.Enabled {
		proxyURL = "socks5://" + p.cfg.Tor.SocksAddr
	}

	requests := make([]models.DownloadRequest, 0, len(urls))
	for _, u := range urls {
		requests = append(requests, models.DownloadRequest{
			URL:             u,
			Audio:           req.Audio,
			Video:           req.Video,
			Transcript:      req.Transcript,
			AudioFormat:     req.AudioFormat,
			AudioDir:        dirs.audio,
			VideoDir:        dirs.video,
			TranscriptDir:   dirs.transcript,
			ProxyURL:        proxyURL,
			SubtitleLang:    p.cfg.Download.SubtitleLang,
			SubtitleFormat:  p.cfg.Download.SubtitleFormat,
			ManualSubtitles: p.cfg.Download.ManualSubtitles,
		})
	}
	return requests
}

// notify fires the completion webhook when one is configured. Delivery is
// asynchronous and never affects the run's result.
func (p *Pipeline) notify(outcome *models.RunOutcome) {
	if p.cfg.Webhook.URL == "" {
		return
	}
	webhook.DeliverAsync(p.cfg.Webhook.URL, p.cfg.Webhook.Secret, &webhook.Event{
		Type:      webhook.EventRunCompleted,
		Query:     outcome.Query,
		Timestamp: outcome.FinishedAt.Unix(),
		Data:      outcome,
	})
}

// newProviderExtractor builds an extractor for one provider's markup with
// the given result cap.
func newProviderExtractor(cfg config.SearchConfig, p search.Provider, max int) (*search.Extractor, error) {
	return search.NewExtractor(search.Options{
		Selector:       p.Selector,
		AllowedDomains: cfg.AllowedDomains,
		MaxResults:     max,
	})
}
