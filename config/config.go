// Package config turns viper keys into typed settings.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Settings struct {
	LiveKitURL       string
	LiveKitAPIKey    string
	LiveKitAPISecret string
	TokenEndpoint    string

	Room     string
	Identity string

	Language       string
	TargetLanguage string
	Languages      []string

	STTProvider        string
	DeepgramAPIKey     string
	DeepgramModel      string
	SpeechmaticsAPIKey string

	TranslateProvider string
	OpenAIAPIKey      string
	OpenAIModel       string
	GeminiAPIKey      string
	GeminiModel       string

	AudioSource string

	CaptionTTL       time.Duration
	TranslateTimeout time.Duration
	RestartDelay     time.Duration
	SilenceTimeout   time.Duration
	Reliable         bool

	DatabaseURL   string
	JournalBuffer int

	HTTPPort int
}

// SetDefaults registers the default for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("language", "en-US")
	v.SetDefault("languages", []string{"en-US", "es-ES", "fr-FR", "de-DE", "ja-JP", "zh-CN", "hi-IN"})
	v.SetDefault("stt_provider", "auto")
	v.SetDefault("deepgram_model", "nova-2")
	v.SetDefault("translate_provider", "auto")
	v.SetDefault("audio_source", "cmd:")
	v.SetDefault("caption_ttl", 6*time.Second)
	v.SetDefault("translate_timeout", 5*time.Second)
	v.SetDefault("restart_delay", 50*time.Millisecond)
	v.SetDefault("silence_timeout", 8*time.Second)
	v.SetDefault("reliable", true)
	v.SetDefault("journal_buffer", 256)
	v.SetDefault("http_port", 3000)
}

func Load(v *viper.Viper) Settings {
	return Settings{
		LiveKitURL:         v.GetString("livekit_url"),
		LiveKitAPIKey:      v.GetString("livekit_api_key"),
		LiveKitAPISecret:   v.GetString("livekit_api_secret"),
		TokenEndpoint:      v.GetString("token_endpoint"),
		Room:               v.GetString("room"),
		Identity:           v.GetString("identity"),
		Language:           v.GetString("language"),
		TargetLanguage:     v.GetString("target_language"),
		Languages:          v.GetStringSlice("languages"),
		STTProvider:        strings.ToLower(v.GetString("stt_provider")),
		DeepgramAPIKey:     v.GetString("deepgram_api_key"),
		DeepgramModel:      v.GetString("deepgram_model"),
		SpeechmaticsAPIKey: v.GetString("speechmatics_api_key"),
		TranslateProvider:  strings.ToLower(v.GetString("translate_provider")),
		OpenAIAPIKey:       v.GetString("openai_api_key"),
		OpenAIModel:        v.GetString("openai_model"),
		GeminiAPIKey:       v.GetString("gemini_api_key"),
		GeminiModel:        v.GetString("gemini_model"),
		AudioSource:        v.GetString("audio_source"),
		CaptionTTL:         v.GetDuration("caption_ttl"),
		TranslateTimeout:   v.GetDuration("translate_timeout"),
		RestartDelay:       v.GetDuration("restart_delay"),
		SilenceTimeout:     v.GetDuration("silence_timeout"),
		Reliable:           v.GetBool("reliable"),
		DatabaseURL:        v.GetString("database_url"),
		JournalBuffer:      v.GetInt("journal_buffer"),
		HTTPPort:           v.GetInt("http_port"),
	}
}

// CanMint reports whether tokens can be signed locally.
func (s Settings) CanMint() bool {
	return s.LiveKitAPIKey != "" && s.LiveKitAPISecret != ""
}

// ValidateJoin checks what joining a room needs.
func (s Settings) ValidateJoin() error {
	var errs []error
	if s.LiveKitURL == "" {
		errs = append(errs, errors.New("livekit_url is required"))
	}
	if s.Room == "" {
		errs = append(errs, errors.New("room is required"))
	}
	if s.Identity == "" {
		errs = append(errs, errors.New("identity is required"))
	}
	if !s.CanMint() && s.TokenEndpoint == "" {
		errs = append(errs, errors.New("either livekit_api_key and livekit_api_secret or token_endpoint is required"))
	}
	if s.CaptionTTL <= 0 {
		errs = append(errs, fmt.Errorf("caption_ttl must be positive, got %s", s.CaptionTTL))
	}
	if s.TranslateTimeout <= 0 {
		errs = append(errs, fmt.Errorf("translate_timeout must be positive, got %s", s.TranslateTimeout))
	}
	return errors.Join(errs...)
}

// ValidateTokenServer checks what the credential endpoint needs.
func (s Settings) ValidateTokenServer() error {
	var errs []error
	if !s.CanMint() {
		errs = append(errs, errors.New("livekit_api_key and livekit_api_secret are required"))
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("http_port out of range: %d", s.HTTPPort))
	}
	return errors.Join(errs...)
}
