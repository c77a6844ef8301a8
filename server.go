package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"node.town/captioner/config"
	"node.town/captioner/room"
	"node.town/captioner/www"
)

var tokenServerCmd = &cobra.Command{
	Use:   "token-server",
	Short: "Serve room tokens to browser and terminal clients",
	Run:   runTokenServer,
}

func init() {
	tokenServerCmd.Flags().Int("port", 3000, "HTTP port")
	viper.BindPFlag("http_port", tokenServerCmd.Flags().Lookup("port"))
}

func runTokenServer(cmd *cobra.Command, args []string) {
	l := createLoggers(os.Stderr, viper.GetBool("debug"))

	settings := config.Load(viper.GetViper())
	if err := settings.ValidateTokenServer(); err != nil {
		l.main.Fatal("configuration", "error", err)
	}

	mint := func(roomName, identity string) (string, error) {
		return room.NewToken(
			settings.LiveKitAPIKey,
			settings.LiveKitAPISecret,
			roomName,
			identity,
			room.DefaultTokenTTL,
		)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router := www.NewRouter(mint, l.http)
	if err := www.Serve(ctx, settings.HTTPPort, router, l.http); err != nil {
		l.main.Fatal("serve", "error", err)
	}
	l.main.Info("bye")
}
