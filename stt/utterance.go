package stt

import (
	"sync"
	"time"

	"node.town/captioner/capture"
)

// DefaultSilence is how long a session waits for speech before it gives up
// with no-speech.
const DefaultSilence = 8 * time.Second

// utterance tracks one recognition session from start to end. Whatever
// ends it, callbacks go out in order and OnEnd goes out exactly once.
type utterance struct {
	events   capture.Events
	silence  time.Duration
	teardown func()

	mu       sync.Mutex
	segments []capture.Segment
	timer    *time.Timer
	done     bool
}

func newUtterance(events capture.Events, silence time.Duration, teardown func()) *utterance {
	if silence <= 0 {
		silence = DefaultSilence
	}
	return &utterance{events: events, silence: silence, teardown: teardown}
}

// arm starts the silence timer.
func (u *utterance) arm() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return
	}
	u.timer = time.AfterFunc(u.silence, u.timeout)
}

// add records recognized text. Interim text only keeps the session alive.
func (u *utterance) add(text string, final bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return
	}
	if final {
		u.segments = append(u.segments, capture.Segment{Text: text, Final: true})
	}
	if u.timer != nil {
		u.timer.Reset(u.silence)
	}
}

// complete delivers the utterance heard so far and ends the session. With
// nothing heard yet it does nothing, so a stray end-of-speech signal
// before any words does not cut the session short.
func (u *utterance) complete() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done || len(u.segments) == 0 {
		return
	}
	u.flushLocked()
	u.endLocked()
}

// closed ends the session because the transport went away, delivering
// anything already heard.
func (u *utterance) closed() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return
	}
	u.flushLocked()
	u.endLocked()
}

func (u *utterance) fail(code capture.ErrorCode, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return
	}
	u.flushLocked()
	u.events.OnError(code, err)
	u.endLocked()
}

// abort ends the session on request. Anything not yet delivered is lost.
func (u *utterance) abort() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return
	}
	u.endLocked()
}

// heard reports whether final text is waiting to be delivered.
func (u *utterance) heard() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.segments) > 0
}

func (u *utterance) ended() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.done
}

func (u *utterance) timeout() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return
	}
	if len(u.segments) > 0 {
		u.flushLocked()
	} else {
		u.events.OnError(capture.ErrorNoSpeech, nil)
	}
	u.endLocked()
}

func (u *utterance) flushLocked() {
	if len(u.segments) == 0 {
		return
	}
	segments := u.segments
	u.segments = nil
	u.events.OnResult(segments)
}

func (u *utterance) endLocked() {
	u.done = true
	if u.timer != nil {
		u.timer.Stop()
	}
	if u.teardown != nil {
		go u.teardown()
	}
	u.events.OnEnd()
}
