// Package scheduler drives the engine's cycles on cron schedules and
// answers bot commands. A job failure is logged and never stops the cron.
package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/azusa152/Folio/internal/engine"
	"github.com/azusa152/Folio/internal/notifier"
)

// Scheduler owns the cron and the command handler.
type Scheduler struct {
	cron     *cron.Cron
	engine   *engine.Engine
	notifier notifier.Notifier
	log      zerolog.Logger
	ctx      context.Context
}

// New creates a scheduler with seconds-resolution cron expressions.
func New(ctx context.Context, eng *engine.Engine, n notifier.Notifier, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		engine:   eng,
		notifier: n,
		log:      log.With().Str("component", "scheduler").Logger(),
		ctx:      ctx,
	}
}

// RegisterAll wires the scan, alert, and optional summary jobs.
func (s *Scheduler) RegisterAll(scanCron, alertCron, summaryCron string, summaryEnabled bool) error {
	if _, err := s.cron.AddFunc(scanCron, s.scanJob); err != nil {
		return fmt.Errorf("register scan job: %w", err)
	}
	if _, err := s.cron.AddFunc(alertCron, s.alertJob); err != nil {
		return fmt.Errorf("register alert job: %w", err)
	}
	if summaryEnabled {
		if _, err := s.cron.AddFunc(summaryCron, s.summaryJob); err != nil {
			return fmt.Errorf("register summary job: %w", err)
		}
	}
	return nil
}

// Start starts the cron.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunScanNow executes a scan cycle immediately, for run_on_start and /scan.
func (s *Scheduler) RunScanNow() { s.scanJob() }

func (s *Scheduler) scanJob() {
	if _, err := s.engine.ScanCycle(s.ctx); err != nil {
		s.log.Error().Err(err).Msg("scan cycle failed")
	}
}

func (s *Scheduler) alertJob() {
	if _, err := s.engine.AlertCycle(s.ctx); err != nil {
		s.log.Error().Err(err).Msg("alert cycle failed")
	}
}

func (s *Scheduler) summaryJob() {
	digest, err := s.engine.FXSummary(s.ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("fx summary failed")
		return
	}
	if digest == "" {
		return
	}
	if err := s.notifier.Send(s.ctx, digest); err != nil {
		s.log.Error().Err(err).Msg("send fx summary")
	}
}

// HandleCommand answers one bot command. Unknown input gets the help text.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	switch strings.SplitN(command, "@", 2)[0] {
	case "/scan":
		report, err := s.engine.ScanCycle(ctx)
		if err != nil {
			return fmt.Sprintf("Scan failed: %v", err)
		}
		return notifier.FormatScanReport(report)
	case "/watches":
		verdicts, err := s.engine.Watches(ctx)
		if err != nil {
			return fmt.Sprintf("Watch check failed: %v", err)
		}
		return notifier.FormatWatchList(verdicts)
	case "/status":
		return s.engine.Status()
	case "/help":
		return "Commands:\n/scan - run a scan cycle now\n/watches - fresh verdicts for all watches\n/status - uptime and last cycle stats\n/help - this text"
	}
	return "Unknown command. Try /help."
}
