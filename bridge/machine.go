package bridge

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golockbridge/types"
)

var ErrIllegalTransition = errors.New("illegal status transition")

// Machine owns one LockRecord and moves it forward. Once the record is
// terminal every call returns the stored snapshot unchanged.
type Machine struct {
	mu     sync.Mutex
	rec    types.LockRecord
	events Publisher
	now    func() time.Time
}

// NewMachine takes ownership of rec. A record without a status starts in
// pending and its creation is published; a stored record keeps its status.
func NewMachine(rec types.LockRecord, events Publisher) *Machine {
	m := &Machine{rec: rec.Clone(), events: events, now: func() time.Time { return time.Now().UTC() }}
	if m.rec.Status == "" {
		m.rec.Status = types.StatusPending
		m.rec.Timestamps[types.StatusPending] = m.now()
		m.publish("")
	}
	return m
}

func (m *Machine) Snapshot() types.LockRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec.Clone()
}

// MarkLocking records the submitted, unconfirmed lock transaction
func (m *Machine) MarkLocking(sourceTxHash string) (types.LockRecord, error) {
	return m.advance(types.StatusLocking, func(r *types.LockRecord) {
		r.SourceTxHash = sourceTxHash
	})
}

// MarkLocked records the lock id extracted from the confirmed receipt
func (m *Machine) MarkLocked(lockID string) (types.LockRecord, error) {
	return m.advance(types.StatusLocked, func(r *types.LockRecord) {
		r.LockID = lockID
	})
}

func (m *Machine) MarkMinting() (types.LockRecord, error) {
	return m.advance(types.StatusMinting, nil)
}

func (m *Machine) Complete(destinationTxRef string) (types.LockRecord, error) {
	return m.advance(types.StatusCompleted, func(r *types.LockRecord) {
		r.DestinationTxRef = destinationTxRef
	})
}

// Fail is legal from every non-terminal status
func (m *Machine) Fail(cause error) types.LockRecord {
	rec, _ := m.advance(types.StatusFailed, func(r *types.LockRecord) {
		r.Error = types.NewErrorDetail(cause)
	})
	return rec
}

func (m *Machine) advance(next types.Status, mutate func(*types.LockRecord)) (types.LockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rec.Status.Terminal() {
		return m.rec.Clone(), nil
	}
	if !m.rec.Status.CanAdvanceTo(next) {
		return m.rec.Clone(), fmt.Errorf("%w: %s -> %s on %s", ErrIllegalTransition, m.rec.Status, next, m.rec.ID)
	}

	prev := m.rec.Status
	if mutate != nil {
		mutate(&m.rec)
	}
	m.rec.Status = next
	m.rec.Timestamps[next] = m.now()
	m.publish(prev)
	return m.rec.Clone(), nil
}

// called with mu held so events of one record keep their order
func (m *Machine) publish(prev types.Status) {
	if m.events == nil {
		return
	}
	m.events.Publish(types.StatusEvent{Previous: prev, Record: m.rec.Clone()})
}
