package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Gemini translates with a Gemini model. Each pair gets its own model
// handle carrying the pair in its system instruction.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

func (g *Gemini) Create(ctx context.Context, pair Pair) (Engine, error) {
	if pair.Target == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, pair)
	}

	model := g.client.GenerativeModel(g.model)
	model.GenerationConfig.SetTemperature(0.1)
	model.GenerationConfig.SetMaxOutputTokens(1024)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt(pair))},
	}
	model.SafetySettings = []*genai.SafetySetting{
		{
			Category:  genai.HarmCategoryHarassment,
			Threshold: genai.HarmBlockOnlyHigh,
		},
		{
			Category:  genai.HarmCategoryHateSpeech,
			Threshold: genai.HarmBlockOnlyHigh,
		},
	}
	return &geminiEngine{model: model}, nil
}

type geminiEngine struct {
	model *genai.GenerativeModel
}

// Ready checks that the model exists before the first caption needs it.
func (e *geminiEngine) Ready(ctx context.Context) error {
	if _, err := e.model.Info(ctx); err != nil {
		return fmt.Errorf("model info: %w", err)
	}
	return nil
}

func (e *geminiEngine) Translate(ctx context.Context, text string) (string, error) {
	stream := e.model.GenerateContentStream(ctx, genai.Text(text))

	var sb strings.Builder
	for {
		resp, err := stream.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("error streaming: %w", err)
		}
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					sb.WriteString(string(t))
				}
			}
		}
	}
	return sb.String(), nil
}

func (e *geminiEngine) Destroy() error { return nil }
