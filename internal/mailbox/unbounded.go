// Package mailbox provides an unbounded, non-blocking-send channel, the
// primitive the room actor's outbound member mailboxes are built on (see
// SPEC_FULL.md §5: "the actor does not suspend across member-send
// operations: outbound mailboxes are unbounded, so send never blocks").
package mailbox

// Unbounded is a single-producer-many/multi-consumer-safe-enough queue:
// Send never blocks the caller; an internal goroutine drains an
// ever-growing slice buffer into Out. Close stops accepting further
// sends and, once drained, closes Out.
type Unbounded[T any] struct {
	in     chan T
	Out    chan T
	closed chan struct{}
}

// NewUnbounded starts the pump goroutine and returns the queue.
func NewUnbounded[T any]() *Unbounded[T] {
	u := &Unbounded[T]{
		in:     make(chan T),
		Out:    make(chan T),
		closed: make(chan struct{}),
	}
	go u.pump()
	return u
}

// Send enqueues v. It never blocks: if Out isn't immediately ready to
// receive, v joins an in-memory buffer drained as fast as the consumer
// allows.
func (u *Unbounded[T]) Send(v T) {
	select {
	case u.in <- v:
	case <-u.closed:
	}
}

// Close stops accepting new sends and, once any buffered values drain,
// closes Out.
func (u *Unbounded[T]) Close() {
	select {
	case <-u.closed:
	default:
		close(u.closed)
	}
}

func (u *Unbounded[T]) pump() {
	defer close(u.Out)
	var buf []T
	for {
		if len(buf) == 0 {
			select {
			case v := <-u.in:
				buf = append(buf, v)
			case <-u.closed:
				u.drainRemaining(&buf)
				return
			}
			continue
		}
		select {
		case v := <-u.in:
			buf = append(buf, v)
		case u.Out <- buf[0]:
			buf = buf[1:]
		case <-u.closed:
			u.drainRemaining(&buf)
			return
		}
	}
}

func (u *Unbounded[T]) drainRemaining(buf *[]T) {
	for _, v := range *buf {
		u.Out <- v
	}
}
