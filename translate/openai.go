package translate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAI translates with chat completions. One client serves every pair.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAI{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (o *OpenAI) Create(ctx context.Context, pair Pair) (Engine, error) {
	if pair.Target == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, pair)
	}
	return &openAIEngine{
		client: o.client,
		model:  o.model,
		prompt: systemPrompt(pair),
	}, nil
}

type openAIEngine struct {
	client *openai.Client
	model  string
	prompt string
}

func (e *openAIEngine) Translate(ctx context.Context, text string) (string, error) {
	stream, err := e.client.CreateChatCompletionStream(
		ctx,
		openai.ChatCompletionRequest{
			Model: e.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: e.prompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: text,
				},
			},
			Temperature: 0.1,
			Stream:      true,
		},
	)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("OpenAI stream error: %w", err)
		}
		if len(resp.Choices) > 0 {
			sb.WriteString(resp.Choices[0].Delta.Content)
		}
	}
	return sb.String(), nil
}

func (e *openAIEngine) Destroy() error { return nil }

// systemPrompt asks for a bare translation. An empty source language
// leaves detection to the model.
func systemPrompt(pair Pair) string {
	if pair.Source == "" {
		return fmt.Sprintf(
			`Translate the user's message into %s.

Reply with the translation only, no quotes or commentary. Keep names as they are.`,
			languageName(pair.Target),
		)
	}
	return fmt.Sprintf(
		`Translate the user's message from %s to %s.

Reply with the translation only, no quotes or commentary. Keep names as they are.`,
		languageName(pair.Source),
		languageName(pair.Target),
	)
}

var languageNames = map[string]string{
	"ar": "Arabic",
	"de": "German",
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"hi": "Hindi",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"nl": "Dutch",
	"pt": "Portuguese",
	"ru": "Russian",
	"sv": "Swedish",
	"tr": "Turkish",
	"zh": "Chinese",
}

func languageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}
