package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/use-agent/syphon/config"
	"github.com/use-agent/syphon/models"
	"github.com/use-agent/syphon/pipeline"
	"github.com/use-agent/syphon/store"
)

// CLI flags. Each explicitly-set flag overrides the matching SYPHON_*
// environment variable.
var (
	query       = flag.String("query", "", `search phrase, e.g. "lofi hip hop"`)
	fromFile    = flag.String("from-file", "", "skip discovery and dispatch the URLs listed in this file")
	maxResults  = flag.Int("max", 0, "cap on discovered URLs per query")
	audio       = flag.Bool("audio", false, "download audio")
	video       = flag.Bool("video", false, "download video")
	transcript  = flag.Bool("transcript", false, "download transcripts")
	audioFormat = flag.String("audio-format", "", "target audio container (mp3, aac, flac, wav, ogg, opus, m4a)")
	outDir      = flag.String("out", "", "root directory for downloaded media")
	resultsFile = flag.String("results", "", "path of the discovered-URL artifact")
	noRotate    = flag.Bool("no-rotate", false, "skip identity rotation between URLs")
	logLevel    = flag.String("log-level", "", "log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	cfg := config.Load()
	applyFlags(cfg)
	initLogger(cfg.Log)

	if *query == "" && *fromFile == "" {
		fmt.Fprintln(os.Stderr, "either -query or -from-file is required")
		flag.Usage()
		os.Exit(1)
	}

	req := models.CollectRequest{
		Query:       *query,
		MaxResults:  cfg.Search.MaxResults,
		Audio:       *audio,
		Video:       *video,
		Transcript:  *transcript,
		AudioFormat: cfg.Download.AudioFormat,
	}
	// Audio-only is the default selection when no kind flag is given.
	if !req.Audio && !req.Video && !req.Transcript {
		req.Audio = true
	}
	if *noRotate {
		off := false
		req.Rotate = &off
	}

	slog.Info("syphon starting",
		"query", req.Query,
		"fromFile", *fromFile,
		"audio", req.Audio,
		"video", req.Video,
		"transcript", req.Transcript,
		"torEnabled", cfg.Tor.Enabled,
	)

	// The shell owns the base output tree. Per-query subdirectories are
	// created by the run itself.
	if err := bootstrapDirs(cfg.Download, req); err != nil {
		slog.Error("failed to create output directories", "error", err)
		os.Exit(1)
	}

	p, err := pipeline.New(cfg, nil)
	if err != nil {
		fatal(err)
	}

	// A batch runs to completion; an operator interrupt is the only
	// early exit and leaves the artifact and partial downloads intact.
	ctx := context.Background()

	var outcome *models.RunOutcome
	if *fromFile != "" {
		urls, rerr := store.Read(*fromFile)
		if rerr != nil {
			slog.Error("failed to read URL list", "path", *fromFile, "error", rerr)
			os.Exit(1)
		}
		if len(urls) == 0 {
			fmt.Fprintf(os.Stderr, "no URLs found in %s\n", *fromFile)
			os.Exit(1)
		}
		req.URLs = urls
		outcome, err = p.FetchList(ctx, req)
	} else {
		outcome, err = p.Run(ctx, req)
	}
	if err != nil {
		fatal(err)
	}

	printSummary(outcome, cfg.Store.ResultsFile, req.ListMode())

	// Per-item failures are part of the product, not a process failure.
	os.Exit(0)
}

// applyFlags lays explicitly-set flags over the environment config.
func applyFlags(cfg *config.Config) {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["max"] {
		cfg.Search.MaxResults = *maxResults
	}
	if set["audio-format"] {
		cfg.Download.AudioFormat = *audioFormat
	}
	if set["out"] {
		cfg.Download.OutputDir = *outDir
		cfg.Download.AudioDir = filepath.Join(*outDir, "audio")
		cfg.Download.VideoDir = filepath.Join(*outDir, "video")
		cfg.Download.TranscriptDir = filepath.Join(*outDir, "transcripts")
	}
	if set["results"] {
		cfg.Store.ResultsFile = *resultsFile
	}
	if set["log-level"] {
		cfg.Log.Level = *logLevel
	}
}

// bootstrapDirs creates the base directories for the requested kinds.
func bootstrapDirs(cfg config.DownloadConfig, req models.CollectRequest) error {
	dirs := []string{cfg.OutputDir}
	if req.Audio {
		dirs = append(dirs, cfg.AudioDir)
	}
	if req.Video {
		dirs = append(dirs, cfg.VideoDir)
	}
	if req.Transcript {
		dirs = append(dirs, cfg.TranscriptDir)
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// fatal reports a terminal error and exits 1. The no-results case gets
// its bare message so scripts can match on it.
func fatal(err error) {
	var ce *models.CollectError
	if errors.As(err, &ce) {
		if ce.Code == models.ErrCodeNoResults {
			fmt.Fprintln(os.Stderr, ce.Message)
		} else {
			fmt.Fprintf(os.Stderr, "%s: %s\n", ce.Code, ce.Message)
		}
	} else {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(1)
}

func printSummary(o *models.RunOutcome, artifact string, listMode bool) {
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "URL\tAUDIO\tVIDEO\tTRANSCRIPT\tROTATED\n")
	for _, u := range o.URLs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			u.URL,
			kindCell(u, models.KindAudio),
			kindCell(u, models.KindVideo),
			kindCell(u, models.KindTranscript),
			rotationCell(u.Rotation),
		)
	}
	w.Flush()

	s := o.Summary
	fmt.Println()
	fmt.Printf("%d URLs processed, %d with at least one successful download\n",
		s.Discovered, s.Succeeded)
	for _, kind := range models.KindOrder {
		if n := s.FailuresByKind[kind]; n > 0 {
			fmt.Printf("%d %s downloads failed\n", n, kind)
		}
	}
	if s.RotationFailures > 0 {
		fmt.Printf("%d identity rotations failed\n", s.RotationFailures)
	}
	if !listMode {
		fmt.Printf("URL list written to %s\n", artifact)
	}
	fmt.Printf("finished in %s\n", o.FinishedAt.Sub(o.StartedAt).Round(time.Millisecond))
}

// kindCell renders one (URL, kind) cell: the invocation status, or "-"
// when the kind was not requested.
func kindCell(u models.URLOutcome, kind models.MediaKind) string {
	for _, k := range u.Kinds {
		if k.Kind == kind {
			return k.Status
		}
	}
	return "-"
}

func rotationCell(r *models.RotationRecord) string {
	switch {
	case r == nil:
		return "-"
	case r.Rotated:
		return "yes"
	default:
		return "failed"
	}
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
