package etc

import "sync"

// Loop runs posted functions one at a time on a single goroutine.
// Handlers never run concurrently with each other, so state touched only
// from inside the loop needs no locking.
type Loop struct {
	work      chan func()
	done      chan struct{}
	closeOnce sync.Once
}

func NewLoop() *Loop {
	l := &Loop{
		work: make(chan func(), 64),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	for {
		select {
		case fn := <-l.work:
			fn()
		case <-l.done:
			return
		}
	}
}

// Post schedules fn and returns immediately. It reports false if the loop
// has been closed.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.work <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do schedules fn and waits for it to finish. It must not be called from
// inside a loop handler.
func (l *Loop) Do(fn func()) bool {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}

func (l *Loop) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}
