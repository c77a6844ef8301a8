// Package stt provides the speech recognition engines behind the capture
// controller.
package stt

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"node.town/captioner/audio"
	"node.town/captioner/capture"
	"node.town/captioner/speechmatics"
)

// Capability is the recognition backend chosen at startup. A nil
// Recognizer means recognition is unavailable.
type Capability struct {
	Name       string
	Recognizer capture.Recognizer
}

func (c Capability) Available() bool {
	return c.Recognizer != nil
}

type Options struct {
	Provider           string
	DeepgramAPIKey     string
	DeepgramModel      string
	SpeechmaticsAPIKey string
	Silence            time.Duration
}

// Resolve picks the recognition backend once. With no provider named it
// takes the first one that has a key; without a microphone nothing is
// available.
func Resolve(opts Options, mic *audio.Mic, logger *log.Logger) (Capability, error) {
	if mic == nil {
		return Capability{}, nil
	}

	provider := opts.Provider
	if provider == "" || provider == "auto" {
		switch {
		case opts.DeepgramAPIKey != "":
			provider = "deepgram"
		case opts.SpeechmaticsAPIKey != "":
			provider = "speechmatics"
		default:
			return Capability{}, nil
		}
	}

	switch provider {
	case "none":
		return Capability{}, nil
	case "deepgram":
		if opts.DeepgramAPIKey == "" {
			return Capability{}, fmt.Errorf("deepgram recognition needs deepgram_api_key")
		}
		return Capability{
			Name:       "deepgram",
			Recognizer: NewDeepgram(opts.DeepgramAPIKey, opts.DeepgramModel, mic, opts.Silence, logger),
		}, nil
	case "speechmatics":
		if opts.SpeechmaticsAPIKey == "" {
			return Capability{}, fmt.Errorf("speechmatics recognition needs speechmatics_api_key")
		}
		return Capability{
			Name:       "speechmatics",
			Recognizer: NewSpeechmatics(speechmatics.NewClient(opts.SpeechmaticsAPIKey), mic, opts.Silence, logger),
		}, nil
	}
	return Capability{}, fmt.Errorf("unknown recognition provider %q", provider)
}
