package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/listen"

	"node.town/captioner/audio"
	"node.town/captioner/capture"
)

// Deepgram recognizes speech with Deepgram's live websocket API. Every
// engine is one connection that lasts one utterance.
type Deepgram struct {
	token   string
	model   string
	mic     *audio.Mic
	silence time.Duration
	logger  *log.Logger
}

func NewDeepgram(
	token string,
	model string,
	mic *audio.Mic,
	silence time.Duration,
	logger *log.Logger,
) *Deepgram {
	if model == "" {
		model = "nova-2"
	}
	return &Deepgram{
		token:   token,
		model:   model,
		mic:     mic,
		silence: silence,
		logger:  logger,
	}
}

func (d *Deepgram) NewEngine(lang string, events capture.Events) (capture.Engine, error) {
	cOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.model,
		Language:       lang,
		Punctuate:      true,
		Encoding:       audio.Encoding,
		Channels:       audio.Channels,
		SampleRate:     audio.SampleRate,
		SmartFormat:    true,
		InterimResults: true,
		UtteranceEndMs: "1000",
		VadEvents:      true,
	}

	ctx, cancel := context.WithCancel(context.Background())
	session := &DeepgramSession{
		mic:    d.mic,
		logger: d.logger,
		cancel: cancel,
	}
	session.utt = newUtterance(events, d.silence, session.teardown)

	client, err := listen.NewWebSocket(
		ctx,
		d.token,
		cOptions,
		tOptions,
		session,
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf(
			"error creating LiveTranscription connection: %w",
			err,
		)
	}
	session.client = client
	return session, nil
}

// DeepgramSession is both the engine handle and the SDK's message
// callback.
type DeepgramSession struct {
	client *listen.WebSocketClient
	mic    *audio.Mic
	logger *log.Logger
	utt    *utterance
	cancel context.CancelFunc

	mu          sync.Mutex
	unsubscribe func()
}

func (s *DeepgramSession) Start() error {
	frames, unsubscribe := s.mic.Subscribe(100)
	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	s.utt.arm()

	go func() {
		if !s.client.Connect() {
			s.utt.fail(capture.ErrorNetwork, errors.New("deepgram connect failed"))
			return
		}
		for data := range frames {
			if s.utt.ended() {
				return
			}
			if err := s.client.WriteBinary(data); err != nil {
				s.logger.Error("failed to write audio data", "error", err)
			}
		}
	}()
	return nil
}

func (s *DeepgramSession) Stop() error {
	s.utt.abort()
	return nil
}

func (s *DeepgramSession) teardown() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
	if s.client != nil {
		s.client.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *DeepgramSession) Open(ocr *api.OpenResponse) error {
	s.logger.Debug("open", "kind", "deepgram")
	return nil
}

func (s *DeepgramSession) Message(mr *api.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}

	transcript := strings.TrimSpace(mr.Channel.Alternatives[0].Transcript)
	if transcript != "" {
		if mr.IsFinal {
			s.logger.Debug("hear", "txt", transcript)
		} else {
			s.logger.Debug("hear", "tmp", transcript)
		}
		// Final segments are concatenated as they are, so each one after
		// the first carries the word break.
		if mr.IsFinal && s.utt.heard() {
			transcript = " " + transcript
		}
		s.utt.add(transcript, mr.IsFinal)
	}

	if mr.SpeechFinal {
		s.utt.complete()
	}
	return nil
}

func (s *DeepgramSession) Metadata(md *api.MetadataResponse) error {
	s.logger.Debug("metadata", "metadata", md)
	return nil
}

func (s *DeepgramSession) SpeechStarted(
	ssr *api.SpeechStartedResponse,
) error {
	s.logger.Debug("speech start", "timestamp", ssr.Timestamp)
	return nil
}

func (s *DeepgramSession) UtteranceEnd(ur *api.UtteranceEndResponse) error {
	s.logger.Debug("utterance end", "timestamp", ur.LastWordEnd)
	s.utt.complete()
	return nil
}

func (s *DeepgramSession) Close(ocr *api.CloseResponse) error {
	s.logger.Debug("closed", "reason", ocr.Type)
	s.utt.closed()
	return nil
}

func (s *DeepgramSession) Error(er *api.ErrorResponse) error {
	s.logger.Error("error", "type", er.Type, "description", er.Description)
	s.utt.fail(
		capture.ErrorService,
		fmt.Errorf("deepgram: %s: %s", er.Type, er.Description),
	)
	return nil
}

func (s *DeepgramSession) UnhandledEvent(byData []byte) error {
	s.logger.Warn("unhandled event", "data", string(byData))
	return nil
}
