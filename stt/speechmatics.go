package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"node.town/captioner/audio"
	"node.town/captioner/capture"
	"node.town/captioner/etc"
	"node.town/captioner/speechmatics"
)

// Speechmatics recognizes speech with the Speechmatics realtime API. The
// server marks the end of each utterance after a short silence, which ends
// the engine.
type Speechmatics struct {
	client  *speechmatics.Client
	mic     *audio.Mic
	silence time.Duration
	logger  *log.Logger
}

func NewSpeechmatics(
	client *speechmatics.Client,
	mic *audio.Mic,
	silence time.Duration,
	logger *log.Logger,
) *Speechmatics {
	return &Speechmatics{
		client:  client,
		mic:     mic,
		silence: silence,
		logger:  logger,
	}
}

func (sm *Speechmatics) NewEngine(lang string, events capture.Events) (capture.Engine, error) {
	primary := etc.PrimaryLanguage(lang)
	if primary == "" {
		return nil, fmt.Errorf("speechmatics: no language")
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &speechmaticsEngine{
		client: sm.client,
		mic:    sm.mic,
		logger: sm.logger,
		ctx:    ctx,
		cancel: cancel,
		config: speechmatics.TranscriptionConfig{
			Language:           primary,
			OperatingPoint:     speechmatics.OperatingPointEnhanced,
			MaxDelay:           2,
			PunctuationEnabled: true,
			EnablePartials:     true,
			ConversationConfig: &speechmatics.ConversationConfig{
				EndOfUtteranceSilenceTrigger: 0.8,
			},
		},
	}
	e.utt = newUtterance(events, sm.silence, e.teardown)
	return e, nil
}

type speechmaticsEngine struct {
	client *speechmatics.Client
	mic    *audio.Mic
	logger *log.Logger
	config speechmatics.TranscriptionConfig
	utt    *utterance
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	session     *speechmatics.Session
	unsubscribe func()
}

func (e *speechmaticsEngine) Start() error {
	frames, unsubscribe := e.mic.Subscribe(100)
	e.mu.Lock()
	e.unsubscribe = unsubscribe
	e.mu.Unlock()

	e.utt.arm()
	go e.run(frames)
	return nil
}

func (e *speechmaticsEngine) Stop() error {
	e.utt.abort()
	return nil
}

func (e *speechmaticsEngine) run(frames <-chan []byte) {
	session, err := e.client.Start(e.ctx, e.config, speechmatics.AudioFormat{
		Type:       "raw",
		Encoding:   "pcm_s16le",
		SampleRate: audio.SampleRate,
	})
	if err != nil {
		e.utt.fail(capture.ErrorNetwork, err)
		return
	}

	e.mu.Lock()
	e.session = session
	e.mu.Unlock()
	if e.utt.ended() {
		session.Close()
		return
	}

	go func() {
		for data := range frames {
			if err := session.SendAudio(data); err != nil {
				e.logger.Debug("send audio", "error", err)
				return
			}
		}
	}()

	for {
		msg, err := session.Receive()
		if err != nil {
			if !e.utt.ended() {
				e.utt.fail(capture.ErrorNetwork, err)
			}
			return
		}
		switch msg.Message {
		case speechmatics.MessageRecognitionStarted:
			e.logger.Debug("open", "kind", "speechmatics", "lang", e.config.Language)
		case speechmatics.MessageAddTranscript:
			if text := msg.Text(); strings.TrimSpace(text) != "" {
				e.logger.Debug("hear", "txt", text)
				e.utt.add(text, true)
			}
		case speechmatics.MessagePartialTranscript:
			if text := msg.Text(); strings.TrimSpace(text) != "" {
				e.utt.add(text, false)
			}
		case speechmatics.MessageEndOfUtterance:
			e.utt.complete()
		case speechmatics.MessageEndOfTranscript:
			e.utt.closed()
			return
		case speechmatics.MessageError:
			e.utt.fail(
				capture.ErrorService,
				errors.New("speechmatics: "+msg.Type+": "+msg.Reason),
			)
			return
		case speechmatics.MessageWarning:
			e.logger.Warn("warning", "type", msg.Type, "reason", msg.Reason)
		}
	}
}

func (e *speechmaticsEngine) teardown() {
	e.mu.Lock()
	session, unsubscribe := e.session, e.unsubscribe
	e.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if session != nil {
		session.EndStream()
		session.Close()
	}
	e.cancel()
}
