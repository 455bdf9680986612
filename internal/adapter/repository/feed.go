package repository

import (
	"context"
	"sync"
)

// feed backs repository.Subscription for every store. The producer goroutine
// pushes snapshots through deliver and calls finish exactly once when it exits.
type feed struct {
	ctx    context.Context
	cancel context.CancelFunc

	// mu is held for the whole callback so Cancel waits out an in-flight delivery.
	mu      sync.Mutex
	stopped bool

	errMu sync.Mutex
	err   error

	done chan struct{}
	once sync.Once
}

func newFeed(parent context.Context) *feed {
	ctx, cancel := context.WithCancel(parent)
	return &feed{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// deliver runs fn unless the feed has been stopped and reports whether it ran.
func (f *feed) deliver(fn func()) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stopped || f.ctx.Err() != nil {
		return false
	}
	fn()
	return true
}

func (f *feed) Cancel() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	f.cancel()
}

func (f *feed) Done() <-chan struct{} {
	return f.done
}

func (f *feed) Err() error {
	f.errMu.Lock()
	defer f.errMu.Unlock()
	return f.err
}

func (f *feed) finish(err error) {
	f.once.Do(func() {
		f.mu.Lock()
		f.stopped = true
		f.mu.Unlock()

		f.errMu.Lock()
		f.err = err
		f.errMu.Unlock()

		f.cancel()
		close(f.done)
	})
}
