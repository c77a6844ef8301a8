package caption

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const UnknownSender = "Unknown"

// Translator is the receiver's view of the translation adapter.
type Translator interface {
	// Wants reports whether captions in srcLang should go through
	// Translate right now.
	Wants(srcLang string) bool
	Translate(ctx context.Context, text string) string
	Target() string
}

// Presenter shows a caption on screen.
type Presenter interface {
	Show(text, sender string)
}

// Entry describes one received caption for the journal.
type Entry struct {
	Sender         string
	SourceLanguage string
	Text           string
	TargetLanguage string
	Translation    string
	ReceivedAt     time.Time
}

type Recorder interface {
	Record(e Entry)
}

// Receiver turns inbound payloads into displayed captions.
//
// Payloads are handled in delivery order, but translations resolve
// asynchronously and are shown as they complete. A slow translation of an
// older caption can therefore replace a newer one on screen; nothing
// sequences them.
type Receiver struct {
	translator Translator
	presenter  Presenter
	recorder   Recorder
	timeout    time.Duration
	log        *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type ReceiverOption func(*Receiver)

func WithTranslator(t Translator) ReceiverOption {
	return func(r *Receiver) { r.translator = t }
}

func WithRecorder(rec Recorder) ReceiverOption {
	return func(r *Receiver) { r.recorder = rec }
}

// WithTranslateTimeout bounds each translation; past it the original text
// stays on screen.
func WithTranslateTimeout(d time.Duration) ReceiverOption {
	return func(r *Receiver) { r.timeout = d }
}

func NewReceiver(presenter Presenter, logger *log.Logger, opts ...ReceiverOption) *Receiver {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Receiver{
		presenter: presenter,
		timeout:   5 * time.Second,
		log:       logger,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleData is called by the transport once per inbound message.
func (r *Receiver) HandleData(data []byte, sender string) {
	payload, err := Decode(data)
	if err != nil {
		r.log.Debug("discard", "sender", sender, "error", err)
		return
	}

	text := strings.TrimSpace(payload.Text)
	if text == "" {
		return
	}
	if sender == "" {
		sender = UnknownSender
	}

	entry := Entry{
		Sender:         sender,
		SourceLanguage: payload.SrcLang,
		Text:           text,
		ReceivedAt:     time.Now(),
	}

	r.log.Info("recv", "sender", sender, "lang", payload.SrcLang, "txt", text)

	if r.translator == nil || !r.translator.Wants(payload.SrcLang) {
		r.presenter.Show(text, sender)
		r.record(entry)
		return
	}

	// Show the original now; the translation replaces it when it lands.
	r.presenter.Show(text, sender)

	target := r.translator.Target()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
		defer cancel()

		translated := r.translator.Translate(ctx, text)
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		// A translation that fell back to the original is journaled as
		// untranslated.
		if translated != text {
			r.presenter.Show(translated, sender)
			entry.TargetLanguage = target
			entry.Translation = translated
		}
		r.record(entry)
	}()
}

func (r *Receiver) record(e Entry) {
	if r.recorder != nil {
		r.recorder.Record(e)
	}
}

// Wait blocks until every translation started so far has resolved.
func (r *Receiver) Wait() {
	r.wg.Wait()
}

// Close abandons translations still in flight and waits for them.
func (r *Receiver) Close() {
	r.cancel()
	r.wg.Wait()
}
