package capture

import (
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"node.town/captioner/caption"
	"node.town/captioner/etc"
)

const (
	DefaultRestartDelay = 50 * time.Millisecond
	maxRestartDelay     = 5 * time.Second
)

// Controller owns at most one recognition engine at a time and restarts it
// whenever it ends while listening is wanted.
//
// All state is touched only on the controller's loop. Callbacks from an
// engine carry the id of the session that created it; once the session id
// moves on they are dropped, which covers stop, restart and teardown alike.
type Controller struct {
	recognizer Recognizer
	emit       func(caption.Utterance)
	log        *log.Logger

	unsupported sync.Once
	loop        *etc.Loop

	restartDelay time.Duration

	active   bool
	language string
	session  uint64
	engine   Engine
	pending  *time.Timer
	failures int
}

type Option func(*Controller)

func WithRestartDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.restartDelay = d
		}
	}
}

// NewController returns a controller that hands every finalized utterance to
// emit. A nil recognizer means the platform has no recognition capability.
func NewController(recognizer Recognizer, emit func(caption.Utterance), logger *log.Logger, opts ...Option) *Controller {
	c := &Controller{
		recognizer:   recognizer,
		emit:         emit,
		log:          logger,
		loop:         etc.NewLoop(),
		restartDelay: DefaultRestartDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetListening records whether the user wants to be heard. It starts a
// session on the false→true edge, stops the live one on true→false, and
// restarts on a language change. Repeating the current state does nothing.
// When it returns, a stop has already reached the engine.
func (c *Controller) SetListening(active bool, languageCode string) error {
	if active && c.recognizer == nil {
		c.unsupported.Do(func() {
			c.log.Warn("listen", "error", ErrUnsupported)
		})
		return ErrUnsupported
	}

	c.loop.Do(func() {
		switch {
		case active && !c.active:
			c.active = true
			c.language = languageCode
			c.failures = 0
			c.start()
		case active && c.active && languageCode != c.language:
			c.halt()
			c.language = languageCode
			c.failures = 0
			c.start()
		case !active && c.active:
			c.active = false
			c.halt()
			c.log.Info("listen", "state", "stopped")
		}
	})
	return nil
}

// Listening reports the user's intent, not whether an engine is live.
func (c *Controller) Listening() bool {
	var active bool
	c.loop.Do(func() { active = c.active })
	return active
}

func (c *Controller) Language() string {
	var lang string
	c.loop.Do(func() { lang = c.language })
	return lang
}

// Close stops any live engine and shuts the controller down.
func (c *Controller) Close() {
	c.loop.Do(func() {
		c.active = false
		c.halt()
	})
	c.loop.Close()
}

// start creates and starts a fresh engine for the current language.
func (c *Controller) start() {
	c.session++
	id := c.session

	events := Events{
		OnResult: func(segments []Segment) {
			c.loop.Post(func() { c.handleResult(id, segments) })
		},
		OnError: func(code ErrorCode, err error) {
			c.loop.Post(func() { c.handleError(id, code, err) })
		},
		OnEnd: func() {
			c.loop.Post(func() { c.handleEnd(id) })
		},
	}

	engine, err := c.recognizer.NewEngine(c.language, events)
	if err != nil {
		c.log.Error("create engine", "error", err, "lang", c.language)
		c.failures++
		c.scheduleRestart(id)
		return
	}

	c.engine = engine
	if err := engine.Start(); err != nil {
		c.log.Error("start engine", "error", err, "lang", c.language)
		c.engine = nil
		c.failures++
		c.scheduleRestart(id)
		return
	}

	c.log.Debug("listen", "session", id, "lang", c.language)
}

// halt stops the live engine, if any, and invalidates every callback and
// pending restart that belongs to it.
func (c *Controller) halt() {
	c.session++
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	if c.engine != nil {
		if err := c.engine.Stop(); err != nil {
			c.log.Warn("stop engine", "error", err)
		}
		c.engine = nil
	}
}

func (c *Controller) handleResult(id uint64, segments []Segment) {
	if id != c.session {
		return
	}

	var sb strings.Builder
	for _, s := range segments {
		if s.Final {
			sb.WriteString(s.Text)
		}
	}

	u, err := caption.NewUtterance(sb.String(), c.language)
	if err != nil {
		return
	}
	c.failures = 0
	c.log.Info("hear", "txt", u.Text, "lang", u.SourceLanguage)
	c.emit(u)
}

func (c *Controller) handleError(id uint64, code ErrorCode, err error) {
	if id != c.session || code.Transient() {
		return
	}
	c.log.Warn("engine", "code", code, "error", err)
	c.failures++
}

func (c *Controller) handleEnd(id uint64) {
	if id != c.session {
		return
	}
	c.engine = nil
	if !c.active {
		return
	}
	c.scheduleRestart(id)
}

// scheduleRestart starts a new engine after the restart delay, unless the
// session has moved on by then. Repeated failures without a heard
// utterance back off.
func (c *Controller) scheduleRestart(id uint64) {
	delay := c.restartDelay
	for i := 1; i < c.failures && delay < maxRestartDelay; i++ {
		delay *= 2
	}
	if delay > maxRestartDelay {
		delay = maxRestartDelay
	}

	c.pending = time.AfterFunc(delay, func() {
		c.loop.Post(func() {
			if id != c.session || !c.active {
				return
			}
			c.pending = nil
			c.start()
		})
	})
}
