// Package translate keeps at most one translation engine bound to a
// language pair and degrades to the original text whenever that engine is
// missing, loading, slow or broken.
package translate

import (
	"context"
	"errors"
)

// ErrUnsupported means no engine can be had for the pair, either because
// no translation capability is configured or the engine refuses the pair.
var ErrUnsupported = errors.New("translation unsupported")

// ErrSuperseded is returned by Configure when a later Configure or Reset
// replaced the session before it became ready.
var ErrSuperseded = errors.New("translation session superseded")

type State int

const (
	Idle State = iota
	Loading
	Ready
	Error
	Unsupported
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Error:
		return "error"
	case Unsupported:
		return "unsupported"
	}
	return "unknown"
}

type Pair struct {
	Source string
	Target string
}

func (p Pair) String() string {
	if p.Source == "" && p.Target == "" {
		return "-"
	}
	if p.Source == "" {
		return "auto→" + p.Target
	}
	return p.Source + "→" + p.Target
}

// Engine translates text for one fixed pair.
type Engine interface {
	Translate(ctx context.Context, text string) (string, error)
	Destroy() error
}

// Readier is implemented by engines that need to warm up before their
// first call, such as downloading a model or checking it exists.
type Readier interface {
	Ready(ctx context.Context) error
}

type Factory interface {
	Create(ctx context.Context, pair Pair) (Engine, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, pair Pair) (Engine, error)

func (f FactoryFunc) Create(ctx context.Context, pair Pair) (Engine, error) {
	return f(ctx, pair)
}
