// Package setup asks for credentials interactively and writes them to the
// config file.
package setup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"node.town/captioner/db"
)

type Answers struct {
	LiveKitURL         string
	LiveKitAPIKey      string
	LiveKitAPISecret   string
	TokenEndpoint      string
	Identity           string
	Language           string
	STTProvider        string
	DeepgramAPIKey     string
	SpeechmaticsAPIKey string
	TranslateProvider  string
	OpenAIAPIKey       string
	GeminiAPIKey       string
	DatabaseURL        string
}

// Current reads the answers already in v so the form starts from them.
func Current(v *viper.Viper) Answers {
	return Answers{
		LiveKitURL:         v.GetString("livekit_url"),
		LiveKitAPIKey:      v.GetString("livekit_api_key"),
		LiveKitAPISecret:   v.GetString("livekit_api_secret"),
		TokenEndpoint:      v.GetString("token_endpoint"),
		Identity:           v.GetString("identity"),
		Language:           v.GetString("language"),
		STTProvider:        v.GetString("stt_provider"),
		DeepgramAPIKey:     v.GetString("deepgram_api_key"),
		SpeechmaticsAPIKey: v.GetString("speechmatics_api_key"),
		TranslateProvider:  v.GetString("translate_provider"),
		OpenAIAPIKey:       v.GetString("openai_api_key"),
		GeminiAPIKey:       v.GetString("gemini_api_key"),
		DatabaseURL:        v.GetString("database_url"),
	}
}

// Apply stores every non-empty answer in v.
func Apply(v *viper.Viper, a Answers) {
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("livekit_url", a.LiveKitURL)
	set("livekit_api_key", a.LiveKitAPIKey)
	set("livekit_api_secret", a.LiveKitAPISecret)
	set("token_endpoint", a.TokenEndpoint)
	set("identity", a.Identity)
	set("language", a.Language)
	set("stt_provider", a.STTProvider)
	set("deepgram_api_key", a.DeepgramAPIKey)
	set("speechmatics_api_key", a.SpeechmaticsAPIKey)
	set("translate_provider", a.TranslateProvider)
	set("openai_api_key", a.OpenAIAPIKey)
	set("gemini_api_key", a.GeminiAPIKey)
	set("database_url", a.DatabaseURL)
}

func Run(v *viper.Viper, path string, logger *log.Logger) error {
	logger.Info("setup", "config", path)

	a := Current(v)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("LiveKit server URL").
				Placeholder("wss://example.livekit.cloud").
				Value(&a.LiveKitURL),
			huh.NewInput().
				Title("LiveKit API key (leave empty to use a token endpoint)").
				Value(&a.LiveKitAPIKey),
			huh.NewInput().
				Title("LiveKit API secret").
				EchoMode(huh.EchoModePassword).
				Value(&a.LiveKitAPISecret),
			huh.NewInput().
				Title("Token endpoint").
				Placeholder("http://localhost:3000/getToken").
				Value(&a.TokenEndpoint),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Your name in the room").
				Value(&a.Identity),
			huh.NewSelect[string]().
				Title("Language you speak").
				Options(
					huh.NewOption("English (US)", "en-US"),
					huh.NewOption("Japanese", "ja-JP"),
					huh.NewOption("Spanish", "es-ES"),
					huh.NewOption("French", "fr-FR"),
					huh.NewOption("German", "de-DE"),
				).
				Value(&a.Language),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Speech recognition").
				Options(
					huh.NewOption("Pick by available key", "auto"),
					huh.NewOption("Deepgram", "deepgram"),
					huh.NewOption("Speechmatics", "speechmatics"),
					huh.NewOption("None", "none"),
				).
				Value(&a.STTProvider),
			huh.NewInput().
				Title("Deepgram API key").
				EchoMode(huh.EchoModePassword).
				Value(&a.DeepgramAPIKey),
			huh.NewInput().
				Title("Speechmatics API key").
				EchoMode(huh.EchoModePassword).
				Value(&a.SpeechmaticsAPIKey),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Translation").
				Options(
					huh.NewOption("Pick by available key", "auto"),
					huh.NewOption("OpenAI", "openai"),
					huh.NewOption("Gemini", "gemini"),
					huh.NewOption("None", "none"),
				).
				Value(&a.TranslateProvider),
			huh.NewInput().
				Title("OpenAI API key").
				EchoMode(huh.EchoModePassword).
				Value(&a.OpenAIAPIKey),
			huh.NewInput().
				Title("Google Cloud (Gemini) API key").
				EchoMode(huh.EchoModePassword).
				Value(&a.GeminiAPIKey),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Postgres URL for the caption journal (optional)").
				Placeholder("postgres://localhost:5432/captioner").
				Value(&a.DatabaseURL),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("setup form: %w", err)
	}

	if a.DatabaseURL != "" {
		if err := checkDatabase(a.DatabaseURL, logger); err != nil {
			return err
		}
	}

	Apply(v, a)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("error saving configuration: %w", err)
	}

	logger.Info("setup completed", "config", path)
	return nil
}

func checkDatabase(url string, logger *log.Logger) error {
	pool, _, err := db.Open(context.Background(), url)
	if err == nil {
		pool.Close()
		logger.Info("database ok")
		return nil
	}

	logger.Error("failed to connect to database", "error", err)
	createDB := false
	huh.NewConfirm().
		Title("Do you want to create the captioner database?").
		Value(&createDB).
		Run()
	if !createDB {
		return errors.New("database connection failed; fix database_url or leave it empty")
	}
	if err := createDatabase(); err != nil {
		return err
	}

	pool, _, err = db.Open(context.Background(), url)
	if err != nil {
		return fmt.Errorf("failed to connect to the newly created database: %w", err)
	}
	pool.Close()
	return nil
}

func createDatabase() error {
	cmd := exec.Command("createdb", "captioner")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	return nil
}
