package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"node.town/captioner/setup"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Ask for credentials and write them to config.yaml",
	Run:   runSetup,
}

func runSetup(cmd *cobra.Command, args []string) {
	l := createLoggers(os.Stderr, viper.GetBool("debug"))

	path := viper.ConfigFileUsed()
	if path == "" {
		path = "config.yaml"
	}

	if err := setup.Run(viper.GetViper(), path, l.main); err != nil {
		l.main.Fatal("setup", "error", err)
	}
}
