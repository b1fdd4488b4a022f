// Package recorder keeps an audit trail of scan outcomes, timing verdicts,
// and fired alerts. The trail is write-only from the engine's perspective;
// a recorder failure is logged and never aborts a cycle.
package recorder

import (
	"context"

	"github.com/azusa152/Folio/internal/model"
)

// Recorder persists per-cycle audit rows.
type Recorder interface {
	RecordScan(ctx context.Context, cycleID string, res model.ScanResult) error
	RecordTiming(ctx context.Context, cycleID string, v model.TimingVerdict) error
	RecordFired(ctx context.Context, cycleID string, f model.FiredAlert) error
	Close() error
}

// Noop discards every record; used in tests and when auditing is disabled.
type Noop struct{}

var _ Recorder = Noop{}

func (Noop) RecordScan(context.Context, string, model.ScanResult) error      { return nil }
func (Noop) RecordTiming(context.Context, string, model.TimingVerdict) error { return nil }
func (Noop) RecordFired(context.Context, string, model.FiredAlert) error     { return nil }
func (Noop) Close() error                                                    { return nil }
