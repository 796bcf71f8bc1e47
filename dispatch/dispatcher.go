// Package dispatch runs the per-URL download sequence: optional identity
// rotation, then one tool invocation per selected media kind. Everything
// is strictly sequential because all traffic shares one proxy circuit.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/use-agent/syphon/config"
	"github.com/use-agent/syphon/models"
)

// IdentityRotator is the dispatcher's view of circuit rotation. Both
// methods are best-effort; see the identity package.
type IdentityRotator interface {
	Rotate(ctx context.Context) bool
	Current(ctx context.Context) string
}

// Dispatcher executes download requests one URL at a time, recording a
// per-kind outcome for each. A failed invocation is recorded and skipped
// past, never propagated: one bad URL must not cost the rest of the batch.
type Dispatcher struct {
	bin     string
	runner  Runner
	rotator IdentityRotator
	limiter *rate.Limiter
}

// NewDispatcher wires a Dispatcher. A nil runner means real subprocess
// execution; a nil rotator disables rotation regardless of the per-run
// flag. LaunchInterval 0 disables launch pacing.
func NewDispatcher(cfg config.DownloadConfig, runner Runner, rotator IdentityRotator) *Dispatcher {
	if runner == nil {
		runner = ExecRunner{}
	}
	var limiter *rate.Limiter
	if cfg.LaunchInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.LaunchInterval), 1)
	}
	return &Dispatcher{
		bin:     cfg.ToolBin,
		runner:  runner,
		rotator: rotator,
		limiter: limiter,
	}
}

// DispatchAll processes the requests in order and returns the finalized
// outcome. Context cancellation stops the batch after the current URL;
// already-recorded outcomes are kept.
func (d *Dispatcher) DispatchAll(ctx context.Context, requests []models.DownloadRequest, rotateBeforeEach bool) *models.RunOutcome {
	outcome := &models.RunOutcome{StartedAt: time.Now()}

	for i, req := range requests {
		if ctx.Err() != nil {
			slog.Warn("dispatch interrupted", "processed", i, "total", len(requests))
			break
		}

		slog.Info("processing url", "index", i+1, "total", len(requests), "url", req.URL)

		u := models.URLOutcome{URL: req.URL}
		if rotateBeforeEach && d.rotator != nil {
			u.Rotation = d.rotate(ctx)
		}
		for _, kind := range req.Kinds() {
			u.Kinds = append(u.Kinds, d.invoke(ctx, kind, req))
		}
		outcome.URLs = append(outcome.URLs, u)
	}

	outcome.FinishedAt = time.Now()
	outcome.Finalize()
	return outcome
}

// rotate snapshots the visible address around one rotation attempt. The
// record is observational: the batch continues on the old identity when
// rotation fails, and the after-address may lag the actual circuit swap.
func (d *Dispatcher) rotate(ctx context.Context) *models.RotationRecord {
	before := d.rotator.Current(ctx)
	ok := d.rotator.Rotate(ctx)
	after := d.rotator.Current(ctx)

	if ok {
		slog.Info("identity rotated", "before", before, "after", after)
	} else {
		slog.Warn("identity rotation failed, continuing with current identity",
			"identity", before)
	}
	return &models.RotationRecord{Rotated: ok, Before: before, After: after}
}

// invoke runs one (URL, kind) tool invocation and returns its outcome.
func (d *Dispatcher) invoke(ctx context.Context, kind models.MediaKind, req models.DownloadRequest) models.KindOutcome {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return models.KindOutcome{
				Kind:   kind,
				Status: models.StatusFailed,
				Error:  "launch canceled: " + err.Error(),
			}
		}
	}

	args := buildArgs(kind, req)
	slog.Info("dispatching download", "kind", kind, "url", req.URL)
	slog.Debug("tool invocation", "bin", d.bin, "args", args)

	start := time.Now()
	err := d.runner.Run(ctx, d.bin, args)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		slog.Warn("download failed",
			"kind", kind,
			"url", req.URL,
			"duration_ms", elapsed,
			"error", err,
		)
		return models.KindOutcome{
			Kind:       kind,
			Status:     models.StatusFailed,
			Error:      err.Error(),
			DurationMs: elapsed,
		}
	}

	slog.Info("download complete", "kind", kind, "url", req.URL, "duration_ms", elapsed)
	return models.KindOutcome{Kind: kind, Status: models.StatusOK, DurationMs: elapsed}
}
