package machine

import (
	"sync"

	"github.com/rs/xid"
)

// A CSW is the channel status word describing how an I/O operation ended.
type CSW struct {
	Key      uint8  // protection key of the operation
	CCWAddr  uint32 // address of the CCW following the last one executed
	Unit     uint8  // unit-status bits
	Channel  uint8  // channel-status bits
	Residual uint16 // bytes of the last CCW count not transferred
}

// An Interruption is one pending I/O interruption.
type Interruption struct {
	ID          string
	DeviceAddr  uint16
	CSW         CSW
	Unsolicited bool
}

// An InterruptQueue holds I/O interruptions until the kernel waits for
// them. Waiting on an empty queue parks the caller; this is the only
// suspension point the kernel ever enters.
type InterruptQueue struct {
	mu      sync.Mutex
	nonstop *sync.Cond
	pending []Interruption
}

// NewInterruptQueue creates an empty InterruptQueue.
func NewInterruptQueue() *InterruptQueue {
	q := &InterruptQueue{}
	q.nonstop = sync.NewCond(&q.mu)
	return q
}

// Post appends an interruption and releases a parked waiter.
func (q *InterruptQueue) Post(i Interruption) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i.ID == "" {
		i.ID = xid.New().String()
	}

	q.pending = append(q.pending, i)
	q.nonstop.Signal()
}

// Wait blocks until an interruption is pending and removes it.
//
// There is no timeout: a device that never completes leaves the waiter
// parked forever, matching the machine it models.
func (q *InterruptQueue) Wait() Interruption {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pending) == 0 {
		q.nonstop.Wait()
	}

	i := q.pending[0]
	q.pending = q.pending[1:]

	return i
}

// Len returns the number of interruptions currently queued.
func (q *InterruptQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.pending)
}
