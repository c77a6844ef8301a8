package translate

import (
	"context"
	"fmt"
	"io"
)

// Capability is the translation backend chosen at startup. A zero
// Capability means translation is unavailable.
type Capability struct {
	Name    string
	Factory Factory
	closer  io.Closer
}

func (c Capability) Available() bool {
	return c.Factory != nil
}

func (c Capability) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

type Options struct {
	Provider     string
	OpenAIAPIKey string
	OpenAIModel  string
	GeminiAPIKey string
	GeminiModel  string
}

// Resolve picks the translation backend once. With no provider named it
// takes the first one that has a key. It never probes the network; an
// unusable key surfaces later as a Configure error.
func Resolve(ctx context.Context, opts Options) (Capability, error) {
	provider := opts.Provider
	if provider == "" || provider == "auto" {
		switch {
		case opts.OpenAIAPIKey != "":
			provider = "openai"
		case opts.GeminiAPIKey != "":
			provider = "gemini"
		default:
			return Capability{}, nil
		}
	}

	switch provider {
	case "none":
		return Capability{}, nil
	case "openai":
		if opts.OpenAIAPIKey == "" {
			return Capability{}, fmt.Errorf("openai translation needs openai_api_key")
		}
		return Capability{Name: "openai", Factory: NewOpenAI(opts.OpenAIAPIKey, opts.OpenAIModel)}, nil
	case "gemini":
		if opts.GeminiAPIKey == "" {
			return Capability{}, fmt.Errorf("gemini translation needs gemini_api_key")
		}
		g, err := NewGemini(ctx, opts.GeminiAPIKey, opts.GeminiModel)
		if err != nil {
			return Capability{}, err
		}
		return Capability{Name: "gemini", Factory: g, closer: g}, nil
	}
	return Capability{}, fmt.Errorf("unknown translation provider %q", provider)
}
