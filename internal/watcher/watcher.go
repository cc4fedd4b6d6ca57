// Package watcher re-ingests issues on a fixed interval.
package watcher

import (
	"context"
	"time"

	"mwb/internal/config"
	"mwb/internal/ingest"
	"mwb/internal/logging"
)

type Runner interface {
	Run(ctx context.Context, mode ingest.Mode, opts ingest.RunOptions) (ingest.Summary, error)
}

type Service struct {
	runner Runner
	cfg    config.Config
	log    *logging.Logger
	cycles int
}

func NewService(runner Runner, cfg config.Config, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{runner: runner, cfg: cfg, log: log}
}

// Run ingests once per interval until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	mode, err := ingest.ParseMode(s.cfg.WatchMode)
	if err != nil {
		return err
	}
	if mode == ingest.ModeBackfill {
		// Backfill is a one-off run from the CLI.
		mode = ingest.ModePair
	}

	interval := time.Duration(s.cfg.WatchIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}

	for {
		s.runCycle(ctx, mode)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func (s *Service) runCycle(ctx context.Context, mode ingest.Mode) {
	s.cycles++
	summary, err := s.runner.Run(ctx, mode, ingest.RunOptions{})
	if err != nil {
		s.log.Error("watcher cycle error", "cycle", s.cycles, "error", err)
		return
	}
	failed := 0
	for _, issue := range summary.Issues {
		if issue.Error != "" {
			failed++
		}
	}
	s.log.Info("watcher cycle done", "cycle", s.cycles, "mode", string(mode), "issues", len(summary.Issues), "weeks", summary.TotalWeeks, "failed", failed)
}
