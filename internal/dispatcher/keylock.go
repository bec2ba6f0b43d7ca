package dispatcher

import (
	"context"
	"slices"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

// KeyLocker hands out FIFO tickets per entity key. A ticket for a key becomes
// ready once every ticket enqueued before it for that key is released.
// Keys with no outstanding ticket hold no memory.
type KeyLocker struct {
	// enqueue makes multi-key enqueues atomic so two events never wait on each other
	enqueue sync.Mutex
	// tails holds, per key, the channel closed by the most recently enqueued ticket
	tails *xsync.Map[string, chan struct{}]
}

func NewKeyLocker() *KeyLocker {
	return &KeyLocker{tails: xsync.NewMap[string, chan struct{}]()}
}

type ticketEntry struct {
	key  string
	prev chan struct{}
	own  chan struct{}
}

// Tickets is the set of tickets held by one event
type Tickets struct {
	locker  *KeyLocker
	entries []ticketEntry
	once    sync.Once
}

// Enqueue takes a ticket for every key. Duplicate keys are collapsed.
func (l *KeyLocker) Enqueue(keys []string) *Tickets {
	keys = slices.Clone(keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	t := &Tickets{locker: l, entries: make([]ticketEntry, 0, len(keys))}

	l.enqueue.Lock()
	defer l.enqueue.Unlock()

	for _, key := range keys {
		own := make(chan struct{})
		var prev chan struct{}
		l.tails.Compute(key, func(old chan struct{}, loaded bool) (chan struct{}, xsync.ComputeOp) {
			if loaded {
				prev = old
			}
			return own, xsync.UpdateOp
		})
		t.entries = append(t.entries, ticketEntry{key: key, prev: prev, own: own})
	}

	return t
}

// Wait blocks until every ticket is at the head of its key queue
func (t *Tickets) Wait(ctx context.Context) error {
	for _, e := range t.entries {
		if e.prev == nil {
			continue
		}
		select {
		case <-e.prev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Release hands every key to its next waiter. Tickets released before they
// became ready pass the key on only once their predecessor releases.
func (t *Tickets) Release() {
	t.once.Do(func() {
		for _, e := range t.entries {
			if e.prev == nil {
				t.locker.release(e)
				continue
			}
			select {
			case <-e.prev:
				t.locker.release(e)
			default:
				go func(e ticketEntry) {
					<-e.prev
					t.locker.release(e)
				}(e)
			}
		}
	})
}

func (l *KeyLocker) release(e ticketEntry) {
	close(e.own)
	l.tails.Compute(e.key, func(cur chan struct{}, loaded bool) (chan struct{}, xsync.ComputeOp) {
		if loaded && cur == e.own {
			return nil, xsync.DeleteOp
		}
		return cur, xsync.CancelOp
	})
}

// Len returns the number of keys with outstanding tickets
func (l *KeyLocker) Len() int {
	return l.tails.Size()
}
