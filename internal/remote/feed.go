package remote

import (
	"sync"

	"github.com/yadielglz/littlesprout-sub001/internal/sprout"
)

// feed is the Subscription implementation shared by the backends.
//
// Backends enqueue through send/fail, which never block: snapshots are full
// state replacements, so when the consumer lags the oldest queued snapshot
// is dropped in favor of the newer one. A pump goroutine owns the outbound
// channels and closes them after Unsubscribe, so backends never race a
// channel close.
type feed struct {
	path  string
	in    chan sprout.Snapshot
	inErr chan error
	snaps chan sprout.Snapshot
	errs  chan error
	done  chan struct{}
	once  sync.Once
	stop  func(*feed) // backend-specific detach, may be nil
}

func newFeed(path string, stop func(*feed)) *feed {
	f := &feed{
		path:  path,
		in:    make(chan sprout.Snapshot, 64),
		inErr: make(chan error, 8),
		snaps: make(chan sprout.Snapshot, 64),
		errs:  make(chan error, 8),
		done:  make(chan struct{}),
		stop:  stop,
	}
	go f.pump()
	return f
}

func (f *feed) Snapshots() <-chan sprout.Snapshot { return f.snaps }
func (f *feed) Errs() <-chan error                { return f.errs }

// Unsubscribe detaches from the backend and stops delivery. Idempotent.
func (f *feed) Unsubscribe() {
	f.once.Do(func() {
		if f.stop != nil {
			f.stop(f)
		}
		close(f.done)
	})
}

// pump relays queued snapshots and errors to the consumer-facing channels
// and closes them once the feed is unsubscribed.
func (f *feed) pump() {
	defer func() {
		close(f.snaps)
		close(f.errs)
	}()

	for {
		select {
		case <-f.done:
			return
		case snap := <-f.in:
			select {
			case f.snaps <- snap:
			case <-f.done:
				return
			}
		case err := <-f.inErr:
			select {
			case f.errs <- err:
			case <-f.done:
				return
			}
		}
	}
}

// send enqueues a snapshot, dropping the oldest queued one when full.
func (f *feed) send(snap sprout.Snapshot) {
	for {
		select {
		case f.in <- snap:
			return
		default:
		}
		// Queue full: discard the oldest snapshot, it is superseded.
		select {
		case <-f.in:
		default:
		}
	}
}

// fail enqueues a subscription error without blocking.
func (f *feed) fail(err error) {
	select {
	case f.inErr <- err:
	default:
	}
}

var _ sprout.Subscription = (*feed)(nil)
