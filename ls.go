package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"node.town/captioner/db"
)

var listCaptionsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recent captions from the journal",
	Run:   runListCaptions,
}

func init() {
	listCaptionsCmd.Flags().String("room", "", "Only show captions from this room")
	listCaptionsCmd.Flags().Int32("limit", 50, "Number of captions to show")
}

func runListCaptions(cmd *cobra.Command, args []string) {
	l := createLoggers(os.Stderr, viper.GetBool("debug"))

	url := viper.GetString("database_url")
	if url == "" {
		l.main.Fatal("database_url is not set")
	}

	pool, queries, err := db.Open(context.Background(), url)
	if err != nil {
		l.data.Fatal("open database", "error", err)
	}
	defer pool.Close()

	roomName, _ := cmd.Flags().GetString("room")
	limit, _ := cmd.Flags().GetInt32("limit")

	captions, err := queries.ListRecentCaptions(context.Background(), db.ListRecentCaptionsParams{
		Room:  roomName,
		Limit: limit,
	})
	if err != nil {
		l.data.Fatal("fetch captions", "error", err)
	}

	if len(captions) == 0 {
		fmt.Println("No captions found.")
		return
	}

	renderCaptions(os.Stdout, captions)
}

func renderCaptions(w io.Writer, captions []db.Caption) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Received At", "Room", "Sender", "Lang", "Text", "Translation"})
	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)

	for _, c := range captions {
		lang := c.SourceLanguage
		if c.TargetLanguage != "" && c.Translation != "" {
			lang = fmt.Sprintf("%s→%s", c.SourceLanguage, c.TargetLanguage)
		}
		table.Append([]string{
			c.ReceivedAt.Local().Format("2006-01-02 15:04:05"),
			c.Room,
			c.Sender,
			lang,
			c.Text,
			c.Translation,
		})
	}

	table.Render()
}
