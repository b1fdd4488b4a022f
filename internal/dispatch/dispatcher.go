// Package dispatch gates candidate alerts by their per-entity cooldown and
// delivers the ones that pass. The read-check-update sequence for one watch
// is serialized so concurrent cycles cannot double-fire the same alert.
package dispatch

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/azusa152/Folio/internal/metrics"
	"github.com/azusa152/Folio/internal/model"
	"github.com/azusa152/Folio/internal/notifier"
	"github.com/azusa152/Folio/internal/recorder"
	"github.com/azusa152/Folio/internal/store"
)

// Outcome is one watch's position in the alert state machine for a cycle.
type Outcome string

const (
	// OutcomeIdle means the classifier found no alert condition.
	OutcomeIdle Outcome = "IDLE"
	// OutcomeCandidate means should_alert was set but the cooldown gate has
	// not run yet; it is never a terminal outcome.
	OutcomeCandidate Outcome = "CANDIDATE"
	// OutcomeFired means the notification was sent and the cooldown updated.
	OutcomeFired Outcome = "FIRED"
	// OutcomeSuppressed means the cooldown window had not yet elapsed.
	OutcomeSuppressed Outcome = "SUPPRESSED"
	// OutcomeError means the watch could not be evaluated this cycle.
	OutcomeError Outcome = "ERROR"
)

// CheckFunc produces a fresh, side-effect-free verdict for one watch.
type CheckFunc func(ctx context.Context, w model.Watch) (model.TimingVerdict, error)

// Dispatcher owns the cooldown state machine.
type Dispatcher struct {
	watches  store.WatchStore
	rules    store.RuleStore
	notifier notifier.Notifier
	recorder recorder.Recorder
	metrics  *metrics.Metrics
	log      zerolog.Logger

	// Concurrency bounds how many watches are evaluated in parallel.
	Concurrency int
	now         func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the dispatcher's time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// New wires a dispatcher.
func New(watches store.WatchStore, rules store.RuleStore, n notifier.Notifier, rec recorder.Recorder, m *metrics.Metrics, log zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		watches:     watches,
		rules:       rules,
		notifier:    n,
		recorder:    rec,
		metrics:     m,
		log:         log.With().Str("component", "dispatch").Logger(),
		Concurrency: 4,
		now:         time.Now,
		locks:       make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// keyLock returns the mutex serializing one entity's cooldown sequence.
func (d *Dispatcher) keyLock(key string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[key]
	if !ok {
		l = &sync.Mutex{}
		d.locks[key] = l
	}
	return l
}

// RunAlertCycle evaluates every watch in the batch, fires the candidates
// whose cooldown has elapsed, and returns a complete report. One watch's
// failure degrades that watch only. Ordering across watches is unspecified.
func (d *Dispatcher) RunAlertCycle(ctx context.Context, watches []model.Watch, check CheckFunc) model.CycleReport {
	report := model.CycleReport{CycleID: uuid.NewString()}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, d.Concurrency)
	)
	for _, w := range watches {
		if !w.IsActive {
			continue
		}
		report.TotalEvaluated++

		wg.Add(1)
		go func(w model.Watch) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			outcome, fired := d.dispatchWatch(ctx, report.CycleID, w, check)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case OutcomeFired:
				report.Triggered++
				report.Fired++
				report.FiredAlerts = append(report.FiredAlerts, fired)
			case OutcomeSuppressed:
				report.Triggered++
				report.Suppressed++
			case OutcomeError:
				report.Errors++
			}
		}(w)
	}
	wg.Wait()

	d.log.Info().Str("cycle_id", report.CycleID).
		Int("evaluated", report.TotalEvaluated).
		Int("triggered", report.Triggered).
		Int("fired", report.Fired).
		Int("suppressed", report.Suppressed).
		Int("errors", report.Errors).
		Msg("alert cycle complete")
	return report
}

// dispatchWatch runs the state machine for one watch. Only a CANDIDATE
// reaches the cooldown gate and the notify step.
func (d *Dispatcher) dispatchWatch(ctx context.Context, cycleID string, w model.Watch, check CheckFunc) (Outcome, model.FiredAlert) {
	verdict, err := check(ctx, w)
	if err != nil {
		d.log.Warn().Err(err).Str("pair", w.Pair()).Msg("watch evaluation failed")
		d.metrics.FetchError()
		return OutcomeError, model.FiredAlert{}
	}
	if err := d.recorder.RecordTiming(ctx, cycleID, verdict); err != nil {
		d.log.Warn().Err(err).Str("pair", w.Pair()).Msg("record timing verdict")
	}
	if !verdict.ShouldAlert {
		return OutcomeIdle, model.FiredAlert{}
	}

	lock := d.keyLock(watchKey(w.ID))
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: another cycle may have fired this watch
	// between our evaluation and now.
	current, err := d.watches.GetWatch(ctx, w.ID)
	if err != nil {
		d.log.Warn().Err(err).Str("pair", w.Pair()).Msg("re-read watch for cooldown check")
		return OutcomeError, model.FiredAlert{}
	}
	now := d.now()
	if underCooldown(current.LastAlertedAt, current.Cooldown(), now) {
		d.log.Debug().Str("pair", w.Pair()).Time("last_alerted_at", *current.LastAlertedAt).
			Msg("candidate suppressed by cooldown")
		d.metrics.AlertSuppressed()
		return OutcomeSuppressed, model.FiredAlert{}
	}

	// Send before marking: a transient delivery failure must never eat a
	// real alert, so the candidate stays eligible for the next cycle.
	if err := d.notifier.Send(ctx, notifier.FormatTimingAlert(verdict)); err != nil {
		d.log.Error().Err(err).Str("pair", w.Pair()).Msg("notification send failed")
		d.metrics.NotifyError()
		return OutcomeError, model.FiredAlert{}
	}
	if err := d.watches.MarkAlerted(ctx, w.ID, now); err != nil {
		d.log.Error().Err(err).Str("pair", w.Pair()).Msg("mark alerted")
	}
	d.metrics.AlertFired("fx_timing")

	fired := model.FiredAlert{WatchID: w.ID, Pair: w.Pair(), Verdict: verdict, SentAt: now}
	if err := d.recorder.RecordFired(ctx, cycleID, fired); err != nil {
		d.log.Warn().Err(err).Str("pair", w.Pair()).Msg("record fired alert")
	}
	return OutcomeFired, fired
}

// FireRule runs the same cooldown gate for a custom threshold rule whose
// condition already matched. The text is sent as-is.
func (d *Dispatcher) FireRule(ctx context.Context, rule model.AlertRule, text string) (Outcome, error) {
	lock := d.keyLock(ruleKey(rule.ID))
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: the caller's copy may predate another
	// cycle's trigger of this rule.
	current, err := d.rules.GetRule(ctx, rule.ID)
	if err != nil {
		d.log.Warn().Err(err).Int64("rule_id", rule.ID).Msg("re-read rule for cooldown check")
		return OutcomeError, err
	}
	now := d.now()
	cooldown := time.Duration(current.CooldownHours) * time.Hour
	if underCooldown(current.LastTriggeredAt, cooldown, now) {
		d.metrics.AlertSuppressed()
		return OutcomeSuppressed, nil
	}
	if err := d.notifier.Send(ctx, text); err != nil {
		d.metrics.NotifyError()
		return OutcomeError, err
	}
	if err := d.rules.MarkTriggered(ctx, rule.ID, now); err != nil {
		d.log.Error().Err(err).Int64("rule_id", rule.ID).Msg("mark triggered")
	}
	d.metrics.AlertFired("rule")
	return OutcomeFired, nil
}

// underCooldown reports whether the last alert is still inside the window.
// A zero cooldown never suppresses.
func underCooldown(last *time.Time, cooldown time.Duration, now time.Time) bool {
	if last == nil || cooldown <= 0 {
		return false
	}
	return now.Sub(*last) < cooldown
}

func watchKey(id int64) string { return "watch:" + strconv.FormatInt(id, 10) }
func ruleKey(id int64) string  { return "rule:" + strconv.FormatInt(id, 10) }
