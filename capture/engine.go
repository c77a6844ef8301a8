// Package capture turns a recognition engine that stops after every
// utterance into what looks like continuous listening.
package capture

import "errors"

var ErrUnsupported = errors.New("speech recognition unsupported")

// ErrorCode is an engine-reported error.
type ErrorCode string

const (
	ErrorNoSpeech ErrorCode = "no-speech"
	ErrorAborted  ErrorCode = "aborted"
	ErrorNetwork  ErrorCode = "network"
	ErrorAudio    ErrorCode = "audio-capture"
	ErrorService  ErrorCode = "service"
)

// Transient reports whether the error is expected during normal use and
// should not be surfaced.
func (c ErrorCode) Transient() bool {
	return c == ErrorNoSpeech || c == ErrorAborted
}

type Segment struct {
	Text  string
	Final bool
}

// Events are the callbacks an engine fires. They may be invoked from any
// goroutine.
type Events struct {
	OnResult func(segments []Segment)
	OnError  func(code ErrorCode, err error)
	OnEnd    func()
}

// Engine is one recognition session. It ends by itself after an utterance,
// a silence timeout, or an error, and reports that through OnEnd. After Stop
// returns it delivers no further results.
type Engine interface {
	Start() error
	Stop() error
}

// Recognizer creates engines bound to a language.
type Recognizer interface {
	NewEngine(languageCode string, events Events) (Engine, error)
}
