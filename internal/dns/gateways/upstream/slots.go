package upstream

import (
	"errors"
	"sync"

	"fwdns/internal/dns/domain"
)

// ErrOutOfSlots is returned when all 65536 transaction ids are in flight.
var ErrOutOfSlots = errors.New("no free transaction id slots")

// slot holds the demultiplexing state for one in-flight query: the id the
// client originally chose and the channel its reply is delivered on.
type slot struct {
	origID uint16
	reply  chan *domain.Message
}

// slotTable maps locally chosen transaction ids to pending queries. It is the
// authority on which in-flight query a reply belongs to. All mutation happens
// under the mutex, held only for the map operation itself, never across a
// network await.
type slotTable struct {
	mu      sync.Mutex
	pending map[uint16]slot
	counter uint16
}

func newSlotTable() *slotTable {
	return &slotTable{pending: make(map[uint16]slot)}
}

// create allocates a free transaction id and registers a buffered reply
// channel for it. Ids come from a wrapping counter that skips ids still in
// flight; the up-front fullness check keeps the skip loop finite.
func (t *slotTable) create(origID uint16) (uint16, <-chan *domain.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.pending) >= 1<<16 {
		return 0, nil, ErrOutOfSlots
	}
	t.counter++
	for {
		if _, used := t.pending[t.counter]; !used {
			break
		}
		t.counter++
	}

	id := t.counter
	// Buffered so the receive loop never blocks on a caller that already
	// timed out.
	ch := make(chan *domain.Message, 1)
	t.pending[id] = slot{origID: origID, reply: ch}
	return id, ch, nil
}

// remove deletes and returns the slot for id. Exactly one caller observes
// ok=true per slot, which makes removal the single cleanup point on every
// exit path (reply, timeout, cancellation, send failure).
func (t *slotTable) remove(id uint16) (slot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	return s, ok
}

// size returns the number of queries currently in flight.
func (t *slotTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
