package bridge

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"golockbridge/types"
)

type Observer func(types.StatusEvent)

// Publisher receives every transition of every record
type Publisher interface {
	Publish(ev types.StatusEvent)
}

// Broadcaster fans status events out to observers and subscriber channels.
// Delivery is best effort: a slow subscriber or observer loses events and a
// panicking observer is logged. Publish never waits on either.
type Broadcaster struct {
	mu        sync.RWMutex
	observers []chan types.StatusEvent
	subs      []chan types.StatusEvent
	closed    bool
	dropped   atomic.Uint64
	running   sync.WaitGroup
	logger    *zap.Logger
}

// events queued per observer before Publish starts dropping
const observerBuffer = 1024

func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{logger: logger}
}

// Observe registers fn to be called on every event, in publish order, from a
// goroutine owned by the broadcaster. Close waits for queued events to drain.
func (b *Broadcaster) Observe(fn Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	queue := make(chan types.StatusEvent, observerBuffer)
	b.observers = append(b.observers, queue)
	b.running.Add(1)
	go func() {
		defer b.running.Done()
		for ev := range queue {
			b.notify(fn, ev)
		}
	}()
}

// Subscribe returns a channel buffered to size; it is closed by Close
func (b *Broadcaster) Subscribe(size int) <-chan types.StatusEvent {
	ch := make(chan types.StatusEvent, size)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

func (b *Broadcaster) Publish(ev types.StatusEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, ch := range b.observers {
		b.offer(ch, ev, "status observer behind, event dropped")
	}
	for _, ch := range b.subs {
		b.offer(ch, ev, "status subscriber full, event dropped")
	}
}

func (b *Broadcaster) offer(ch chan<- types.StatusEvent, ev types.StatusEvent, dropMsg string) {
	select {
	case ch <- types.StatusEvent{Previous: ev.Previous, Record: ev.Record.Clone()}:
	default:
		b.dropped.Add(1)
		b.logger.Warn(dropMsg, zap.String("record_id", ev.Record.ID), zap.String("status", string(ev.Record.Status)))
	}
}

func (b *Broadcaster) notify(fn Observer, ev types.StatusEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("status observer panicked", zap.String("record_id", ev.Record.ID), zap.Any("panic", r))
		}
	}()
	fn(ev)
}

// Dropped counts events lost to full subscriber channels and lagging observers
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Close stops delivery, closes every subscriber channel and returns once the
// observers have handled what was queued for them
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, ch := range b.observers {
		close(ch)
	}
	for _, ch := range b.subs {
		close(ch)
	}
	b.observers, b.subs = nil, nil
	b.mu.Unlock()

	b.running.Wait()
}
