package store

import (
	"context"
	"time"

	"github.com/sweeney/thermostat/internal/logger"
)

// DefaultMinGap is the minimum time between routine writes.
const DefaultMinGap = 30 * time.Second

const saveTimeout = 2 * time.Second

// Persister debounces writes to a Store. Routine updates are written at
// most once per gap; forced updates are written immediately. A failed
// write is logged, the record stays pending, and the in-memory value
// remains authoritative.
//
// Owned by the control loop; not safe for concurrent use.
type Persister struct {
	st  Store
	gap time.Duration
	log *logger.Logger

	pending   Record
	dirty     bool
	wrote     bool
	lastWrite time.Time

	writes   int
	failures int
}

// NewPersister creates a persister writing to st.
func NewPersister(st Store, gap time.Duration, log *logger.Logger) *Persister {
	return &Persister{st: st, gap: gap, log: log}
}

// Update records rec as the latest state. With force it is written now;
// otherwise it is written if the gap since the last write has elapsed and
// left pending for Flush if not.
func (p *Persister) Update(rec Record, now time.Time, force bool) {
	p.pending = rec
	p.dirty = true
	if force {
		p.write(now)
		return
	}
	p.Flush(now)
}

// Flush writes the pending record if one exists and the gap has elapsed.
func (p *Persister) Flush(now time.Time) {
	if !p.dirty {
		return
	}
	if p.wrote && now.Sub(p.lastWrite) < p.gap {
		return
	}
	p.write(now)
}

// ForceFlush writes the pending record regardless of the gap. Used on
// shutdown.
func (p *Persister) ForceFlush(now time.Time) {
	if p.dirty {
		p.write(now)
	}
}

func (p *Persister) write(now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	p.wrote = true
	p.lastWrite = now
	if err := p.st.Save(ctx, p.pending); err != nil {
		p.failures++
		p.log.Warnw("persist setpoint failed", "err", err)
		return
	}
	p.dirty = false
	p.writes++
	p.log.Debugw("setpoint persisted", "setpoint", p.pending.Setpoint, "preset", p.pending.Preset)
}

// Dirty reports whether a record is waiting to be written.
func (p *Persister) Dirty() bool {
	return p.dirty
}

// Counts returns the number of successful and failed writes.
func (p *Persister) Counts() (writes, failures int) {
	return p.writes, p.failures
}
