package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"node.town/captioner/audio"
	"node.town/captioner/caption"
	"node.town/captioner/config"
	"node.town/captioner/db"
	"node.town/captioner/display"
	"node.town/captioner/journal"
	"node.town/captioner/room"
	"node.town/captioner/stt"
	"node.town/captioner/translate"
	"node.town/captioner/ui"
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a room and caption it",
	RunE:  runJoin,
}

func init() {
	joinCmd.Flags().String("room", "", "Room to join")
	joinCmd.Flags().String("identity", "", "Your participant name")
	joinCmd.Flags().String("language", "", "Language you speak, e.g. en-US")
	joinCmd.Flags().String("target-language", "", "Translate incoming captions into this language")
	joinCmd.Flags().String("token-endpoint", "", "Credential endpoint to fetch a room token from")
	joinCmd.Flags().String("audio", "", `Microphone source: "-" for stdin, "cmd:<command>", or a file of 16kHz mono s16le PCM`)
	joinCmd.Flags().String("stt", "", "Recognition provider: auto, deepgram, speechmatics, none")
	joinCmd.Flags().String("translator", "", "Translation provider: auto, openai, gemini, none")
	joinCmd.Flags().Bool("listen", false, "Start listening right away")
	joinCmd.Flags().Bool("plain", false, "Log captions instead of running the terminal interface")

	viper.BindPFlag("room", joinCmd.Flags().Lookup("room"))
	viper.BindPFlag("identity", joinCmd.Flags().Lookup("identity"))
	viper.BindPFlag("language", joinCmd.Flags().Lookup("language"))
	viper.BindPFlag("target_language", joinCmd.Flags().Lookup("target-language"))
	viper.BindPFlag("token_endpoint", joinCmd.Flags().Lookup("token-endpoint"))
	viper.BindPFlag("audio_source", joinCmd.Flags().Lookup("audio"))
	viper.BindPFlag("stt_provider", joinCmd.Flags().Lookup("stt"))
	viper.BindPFlag("translate_provider", joinCmd.Flags().Lookup("translator"))
}

func runJoin(cmd *cobra.Command, args []string) error {
	settings := config.Load(viper.GetViper())
	if err := settings.ValidateJoin(); err != nil {
		return err
	}
	plain, _ := cmd.Flags().GetBool("plain")
	listen, _ := cmd.Flags().GetBool("listen")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		out    io.Writer = os.Stderr
		bridge *ui.Bridge
	)
	if !plain {
		logFile, err := os.OpenFile("captioner.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer logFile.Close()
		bridge = ui.NewBridge()
		defer bridge.Close()
		out = io.MultiWriter(logFile, bridge)
	}
	l := createLoggers(out, viper.GetBool("debug"))

	token, err := roomToken(ctx, settings)
	if err != nil {
		return err
	}

	var mic *audio.Mic
	src, err := audio.Open(ctx, settings.AudioSource)
	if err != nil {
		l.hear.Warn("no microphone", "error", err)
	} else {
		defer src.Close()
		mic = audio.NewMic(src, l.hear)
		go func() {
			if err := mic.Run(ctx); err != nil {
				l.hear.Error("microphone", "error", err)
			}
		}()
	}

	recognition, err := stt.Resolve(stt.Options{
		Provider:           settings.STTProvider,
		DeepgramAPIKey:     settings.DeepgramAPIKey,
		DeepgramModel:      settings.DeepgramModel,
		SpeechmaticsAPIKey: settings.SpeechmaticsAPIKey,
		Silence:            settings.SilenceTimeout,
	}, mic, l.hear)
	if err != nil {
		return err
	}
	l.main.Info("recognition", "provider", orNone(recognition.Name))

	translation, err := translate.Resolve(ctx, translate.Options{
		Provider:     settings.TranslateProvider,
		OpenAIAPIKey: settings.OpenAIAPIKey,
		OpenAIModel:  settings.OpenAIModel,
		GeminiAPIKey: settings.GeminiAPIKey,
		GeminiModel:  settings.GeminiModel,
	})
	if err != nil {
		return err
	}
	defer translation.Close()
	l.main.Info("translation", "provider", orNone(translation.Name))

	var recorder caption.Recorder
	if settings.DatabaseURL != "" {
		pool, queries, err := db.Open(ctx, settings.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		j := journal.New(queries, settings.Room, settings.JournalBuffer, l.data)
		defer j.Close()
		recorder = j
	}

	opts := pipelineOptions{
		CaptionTTL:       settings.CaptionTTL,
		TranslateTimeout: settings.TranslateTimeout,
		RestartDelay:     settings.RestartDelay,
		Reliable:         settings.Reliable,
		Factory:          translation.Factory,
		Recorder:         recorder,
	}
	if bridge != nil {
		opts.Renderers = []display.Renderer{bridge}
		opts.OnStatus = bridge.Status
	} else {
		opts.Renderers = []display.Renderer{ui.NewLogRenderer(l.show)}
	}
	p := newPipeline(opts, l)
	defer p.Close()

	r, err := room.Connect(settings.LiveKitURL, token, p.HandleData, l.room)
	if err != nil {
		return err
	}
	defer r.Close()

	p.attach(r, recognition.Recognizer)

	if settings.TargetLanguage != "" && translation.Available() {
		p.ConfigureTranslation(settings.TargetLanguage)
	}
	if listen || plain {
		if err := p.SetListening(true, settings.Language); err != nil {
			l.main.Warn("listen", "error", err)
		}
	}

	if plain {
		<-ctx.Done()
		l.main.Info("bye")
		return nil
	}

	model := ui.New(p, bridge, settings.Room, settings.Languages, settings.Language, settings.TargetLanguage)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()
	bridge.Close()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("terminal interface: %w", err)
	}
	return nil
}

func roomToken(ctx context.Context, s config.Settings) (string, error) {
	if s.CanMint() {
		return room.NewToken(s.LiveKitAPIKey, s.LiveKitAPISecret, s.Room, s.Identity, room.DefaultTokenTTL)
	}
	return room.FetchToken(ctx, s.TokenEndpoint, s.Room, s.Identity)
}

func orNone(name string) string {
	if name == "" {
		return "none"
	}
	return name
}
