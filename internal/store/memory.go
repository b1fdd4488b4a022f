package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/azusa152/Folio/internal/model"
)

// Memory is an in-memory Store for tests and throwaway runs. All reads
// return copies; the caller never shares state with the store.
type Memory struct {
	mu          sync.RWMutex
	watches     map[int64]model.Watch
	instruments map[string]model.Instrument
	rules       map[int64]model.AlertRule
	nextWatch   int64
	nextRule    int64
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		watches:     make(map[int64]model.Watch),
		instruments: make(map[string]model.Instrument),
		rules:       make(map[int64]model.AlertRule),
		nextWatch:   1,
		nextRule:    1,
	}
}

func (m *Memory) ActiveWatches(context.Context) ([]model.Watch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Watch, 0, len(m.watches))
	for _, w := range m.watches {
		if w.IsActive {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetWatch(_ context.Context, id int64) (model.Watch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.watches[id]
	if !ok {
		return model.Watch{}, ErrNotFound
	}
	return w, nil
}

func (m *Memory) UpsertWatch(_ context.Context, w model.Watch) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// A pair is unique: re-upserting updates the existing watch in place
	// and keeps its cooldown state, same as the SQLite conflict path.
	for _, existing := range m.watches {
		if existing.Base == w.Base && existing.Quote == w.Quote {
			w.ID = existing.ID
			w.LastAlertedAt = existing.LastAlertedAt
			m.watches[w.ID] = w
			return w.ID, nil
		}
	}
	if w.ID == 0 {
		w.ID = m.nextWatch
		m.nextWatch++
	} else if w.ID >= m.nextWatch {
		m.nextWatch = w.ID + 1
	}
	m.watches[w.ID] = w
	return w.ID, nil
}

func (m *Memory) MarkAlerted(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.watches[id]
	if !ok {
		return ErrNotFound
	}
	w.LastAlertedAt = &at
	m.watches[id] = w
	return nil
}

func (m *Memory) ActiveInstruments(context.Context) ([]model.Instrument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Instrument, 0, len(m.instruments))
	for _, inst := range m.instruments {
		if inst.IsActive {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].Ticker < out[j].Ticker
	})
	return out, nil
}

func (m *Memory) UpsertInstrument(_ context.Context, inst model.Instrument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instruments[inst.Ticker] = inst
	return nil
}

func (m *Memory) UpdateSignal(_ context.Context, ticker string, signal model.SignalState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instruments[ticker]
	if !ok {
		return ErrNotFound
	}
	inst.LastSignal = signal
	m.instruments[ticker] = inst
	return nil
}

func (m *Memory) ActiveRules(context.Context) ([]model.AlertRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.AlertRule, 0, len(m.rules))
	for _, r := range m.rules {
		if r.IsActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetRule(_ context.Context, id int64) (model.AlertRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rules[id]
	if !ok {
		return model.AlertRule{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) UpsertRule(_ context.Context, r model.AlertRule) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == 0 {
		r.ID = m.nextRule
		m.nextRule++
	} else if r.ID >= m.nextRule {
		m.nextRule = r.ID + 1
	}
	m.rules[r.ID] = r
	return r.ID, nil
}

func (m *Memory) MarkTriggered(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return ErrNotFound
	}
	r.LastTriggeredAt = &at
	m.rules[id] = r
	return nil
}

func (m *Memory) Close() error { return nil }
