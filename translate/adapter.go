package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"node.town/captioner/etc"
)

const DefaultTimeout = 5 * time.Second

// Adapter owns the translation session. It never lets an engine failure
// reach the caller: anything short of a good translation gives back the
// original text.
//
// The handle and its generation are guarded by mu, which is never held
// across an engine call. Each session has its own context; replacing the
// session cancels calls still running against the old handle.
type Adapter struct {
	factory  Factory
	log      *log.Logger
	timeout  time.Duration
	onChange func(State, Pair)

	mu      sync.Mutex
	state   State
	pair    Pair
	engine  Engine
	gen     uint64
	sessCtx context.Context
	cancel  context.CancelFunc
}

type Option func(*Adapter)

func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// OnChange registers fn to be called after each state transition.
func OnChange(fn func(State, Pair)) Option {
	return func(a *Adapter) { a.onChange = fn }
}

// NewAdapter returns an idle adapter. A nil factory means there is no
// translation capability and every Configure ends Unsupported.
func NewAdapter(factory Factory, logger *log.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		factory: factory,
		log:     logger,
		timeout: DefaultTimeout,
		state:   Idle,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Configure replaces the current session with one for source→target and
// waits until the new engine is ready or has failed.
func (a *Adapter) Configure(ctx context.Context, source, target string) error {
	pair := Pair{Source: etc.PrimaryLanguage(source), Target: etc.PrimaryLanguage(target)}

	a.mu.Lock()
	old, oldCancel := a.engine, a.cancel
	a.gen++
	gen := a.gen
	a.engine = nil
	a.pair = pair
	a.state = Loading
	a.sessCtx, a.cancel = context.WithCancel(context.Background())
	sessCtx := a.sessCtx
	a.mu.Unlock()

	a.teardown(old, oldCancel)
	a.changed(Loading, pair)
	a.log.Info("configure", "pair", pair)

	if a.factory == nil {
		a.fail(gen, pair, Unsupported, ErrUnsupported)
		return ErrUnsupported
	}

	cctx, stop := context.WithCancel(ctx)
	defer stop()
	unlink := context.AfterFunc(sessCtx, stop)
	defer unlink()

	engine, err := a.factory.Create(cctx, pair)
	if err != nil {
		state := Error
		if errors.Is(err, ErrUnsupported) {
			state = Unsupported
		}
		a.fail(gen, pair, state, err)
		return fmt.Errorf("create translator %s: %w", pair, err)
	}

	if r, ok := engine.(Readier); ok {
		if err := r.Ready(cctx); err != nil {
			a.destroy(engine)
			a.fail(gen, pair, Error, err)
			return fmt.Errorf("ready translator %s: %w", pair, err)
		}
	}

	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		a.destroy(engine)
		return ErrSuperseded
	}
	a.engine = engine
	a.state = Ready
	a.mu.Unlock()

	a.changed(Ready, pair)
	a.log.Info("ready", "pair", pair)
	return nil
}

// Translate returns the translation of text, or text itself when there is
// no ready engine or the call fails for any reason.
func (a *Adapter) Translate(ctx context.Context, text string) string {
	a.mu.Lock()
	if a.state != Ready || a.engine == nil {
		a.mu.Unlock()
		return text
	}
	engine, sessCtx, gen, pair := a.engine, a.sessCtx, a.gen, a.pair
	a.mu.Unlock()

	tctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	unlink := context.AfterFunc(sessCtx, cancel)
	defer unlink()

	out, err := engine.Translate(tctx, text)
	if err != nil {
		a.log.Warn("translate", "pair", pair, "error", err)
		return text
	}

	a.mu.Lock()
	current := gen == a.gen
	a.mu.Unlock()
	if !current {
		return text
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return text
	}
	return out
}

// Reset tears down the session, if any, and returns to Idle.
func (a *Adapter) Reset() {
	a.mu.Lock()
	old, oldCancel := a.engine, a.cancel
	a.gen++
	a.engine = nil
	a.cancel = nil
	a.sessCtx = nil
	a.pair = Pair{}
	a.state = Idle
	a.mu.Unlock()

	a.teardown(old, oldCancel)
	a.changed(Idle, Pair{})
	a.log.Info("reset")
}

func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Adapter) Pair() Pair {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pair
}

// Target is the language translations are produced in, or "" when no pair
// is configured.
func (a *Adapter) Target() string {
	return a.Pair().Target
}

// Wants reports whether a caption in srcLang should be translated: the
// engine is ready and the caption is not already in the target language.
func (a *Adapter) Wants(srcLang string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Ready {
		return false
	}
	src := etc.PrimaryLanguage(srcLang)
	return src == "" || src != a.pair.Target
}

// Close releases the engine.
func (a *Adapter) Close() {
	a.Reset()
}

func (a *Adapter) fail(gen uint64, pair Pair, state State, err error) {
	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		return
	}
	a.state = state
	a.mu.Unlock()

	a.changed(state, pair)
	a.log.Warn("configure", "pair", pair, "state", state, "error", err)
}

func (a *Adapter) teardown(engine Engine, cancel context.CancelFunc) {
	if cancel != nil {
		cancel()
	}
	if engine != nil {
		a.destroy(engine)
	}
}

func (a *Adapter) destroy(engine Engine) {
	if err := engine.Destroy(); err != nil {
		a.log.Warn("destroy", "error", err)
	}
}

func (a *Adapter) changed(state State, pair Pair) {
	if a.onChange != nil {
		a.onChange(state, pair)
	}
}
