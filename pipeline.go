package main

import (
	"context"
	"sync"
	"time"

	"node.town/captioner/caption"
	"node.town/captioner/capture"
	"node.town/captioner/display"
	"node.town/captioner/translate"
)

const configureTimeout = 2 * time.Minute

// pipeline ties one participant's halves together: what it hears goes out
// through the publisher, and what arrives goes through the receiver to the
// display.
type pipeline struct {
	log  loggers
	opts pipelineOptions

	display  *display.Controller
	adapter  *translate.Adapter
	receiver *caption.Receiver

	publisher *caption.Publisher
	capture   *capture.Controller

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type pipelineOptions struct {
	CaptionTTL       time.Duration
	TranslateTimeout time.Duration
	RestartDelay     time.Duration
	Reliable         bool
	Factory          translate.Factory
	Recorder         caption.Recorder
	OnStatus         func(translate.State, translate.Pair)
	Renderers        []display.Renderer
}

// newPipeline builds the receiving half. attach completes it once a
// transport exists.
func newPipeline(opts pipelineOptions, l loggers) *pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	p := &pipeline{log: l, opts: opts, ctx: ctx, cancel: cancel}

	p.display = display.NewController(opts.CaptionTTL, l.show, opts.Renderers...)

	adapterOpts := []translate.Option{translate.WithTimeout(opts.TranslateTimeout)}
	if opts.OnStatus != nil {
		adapterOpts = append(adapterOpts, translate.OnChange(opts.OnStatus))
	}
	p.adapter = translate.NewAdapter(opts.Factory, l.lang, adapterOpts...)

	receiverOpts := []caption.ReceiverOption{
		caption.WithTranslator(p.adapter),
		caption.WithTranslateTimeout(opts.TranslateTimeout),
	}
	if opts.Recorder != nil {
		receiverOpts = append(receiverOpts, caption.WithRecorder(opts.Recorder))
	}
	p.receiver = caption.NewReceiver(p.display, l.recv, receiverOpts...)

	return p
}

// HandleData is the transport's inbound callback.
func (p *pipeline) HandleData(data []byte, sender string) {
	p.receiver.HandleData(data, sender)
}

func (p *pipeline) attach(transport caption.Transport, recognizer capture.Recognizer) {
	p.publisher = caption.NewPublisher(transport, p.opts.Reliable, p.log.send)
	p.capture = capture.NewController(
		recognizer,
		func(u caption.Utterance) {
			// Delivery failures are logged by the publisher and not retried.
			p.publisher.Publish(u)
		},
		p.log.hear,
		capture.WithRestartDelay(p.opts.RestartDelay),
	)
}

func (p *pipeline) SetListening(active bool, languageCode string) error {
	return p.capture.SetListening(active, languageCode)
}

// ConfigureTranslation builds a translator into target in the background;
// progress shows up through the adapter's status. Captions arrive from
// every speaker in the room, so the source language is always detected.
func (p *pipeline) ConfigureTranslation(target string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(p.ctx, configureTimeout)
		defer cancel()
		p.adapter.Configure(ctx, "", target)
	}()
}

func (p *pipeline) ResetTranslation() {
	p.adapter.Reset()
}

func (p *pipeline) Close() {
	if p.capture != nil {
		p.capture.Close()
	}
	p.cancel()
	p.wg.Wait()
	p.receiver.Close()
	p.adapter.Close()
	p.display.Close()
}
