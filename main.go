package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"node.town/captioner/config"
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(tokenServerCmd)
	rootCmd.AddCommand(listCaptionsCmd)
	rootCmd.AddCommand(setupCmd)

	rootCmd.PersistentFlags().String("config", "", "Config file (default ./config.yaml)")
	rootCmd.PersistentFlags().String("livekit-url", "", "LiveKit server URL")
	rootCmd.PersistentFlags().String("livekit-api-key", "", "LiveKit API key")
	rootCmd.PersistentFlags().String("livekit-api-secret", "", "LiveKit API secret")
	rootCmd.PersistentFlags().String("database-url", "", "Postgres URL for the caption journal")
	rootCmd.PersistentFlags().Bool("debug", false, "Log at debug level")

	viper.BindPFlag("livekit_url", rootCmd.PersistentFlags().Lookup("livekit-url"))
	viper.BindPFlag("livekit_api_key", rootCmd.PersistentFlags().Lookup("livekit-api-key"))
	viper.BindPFlag("livekit_api_secret", rootCmd.PersistentFlags().Lookup("livekit-api-secret"))
	viper.BindPFlag("database_url", rootCmd.PersistentFlags().Lookup("database-url"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error reading .env file: %s\n", err)
	}

	if file, _ := rootCmd.PersistentFlags().GetString("config"); file != "" {
		viper.SetConfigFile(file)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "captioner",
	Short: "Live cross-language captions for LiveKit rooms",
	Long: `Captioner joins a LiveKit room, turns what you say into captions for
everyone else, and shows their captions to you, translated if you like.`,
}

type loggers struct {
	main *log.Logger
	hear *log.Logger
	send *log.Logger
	recv *log.Logger
	lang *log.Logger
	show *log.Logger
	room *log.Logger
	data *log.Logger
	http *log.Logger
}

func createLoggers(out io.Writer, debug bool) loggers {
	logger := log.New(out)

	logLevel := log.InfoLevel
	if debug {
		logLevel = log.DebugLevel
	}
	logger.SetLevel(logLevel)
	logger.SetReportCaller(debug)
	logger.SetCallerFormatter(
		func(file string, line int, funcName string) string {
			path, err := filepath.Rel(".", file)
			if err != nil {
				path = file
			}
			return fmt.Sprintf("%s:%d", path, line)
		},
	)

	styles := log.DefaultStyles()
	styles.Prefix = styles.Prefix.
		Bold(false).Transform(func(s string) string {
		return strings.TrimSuffix(s, ":")
	})
	styles.Levels[log.InfoLevel] = styles.Levels[log.InfoLevel].
		MaxWidth(6).
		MarginRight(1).
		Bold(false)
	styles.Levels[log.ErrorLevel] = styles.Levels[log.ErrorLevel].
		MaxWidth(6).
		MarginRight(1).
		Bold(false)
	styles.Message = styles.Message.Bold(true).Width(16)
	styles.Key = styles.Key.MarginLeft(1).
		Bold(false).
		Foreground(lipgloss.Color("#ff8800"))

	logger.SetStyles(styles)

	return loggers{
		main: logger.With().WithPrefix("main"),
		hear: logger.With().WithPrefix("hear"),
		send: logger.With().WithPrefix("send"),
		recv: logger.With().WithPrefix("recv"),
		lang: logger.With().WithPrefix("lang"),
		show: logger.With().WithPrefix("show"),
		room: logger.With().WithPrefix("room"),
		data: logger.With().WithPrefix("data"),
		http: logger.With().WithPrefix("http"),
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
