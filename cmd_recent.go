package main

import (
	"encoding/json"
	"fmt"

	"gitevents/internal"
	"gitevents/pkg/events"

	"github.com/spf13/cobra"
)

var recentJSON bool

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Print the most recent event messages, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		config, err := internal.LoadConfig(configPath)
		if err != nil {
			return err
		}
		store, err := openStore(cmd.Context(), config.Storage)
		if err != nil {
			return err
		}
		defer store.Close()

		messages, err := events.NewReader(store).Recent(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if recentJSON {
			return json.NewEncoder(out).Encode(messages)
		}
		for _, msg := range messages {
			fmt.Fprintln(out, msg.Message)
		}
		return nil
	},
}

func init() {
	recentCmd.Flags().BoolVar(&recentJSON, "json", false, "print messages as a JSON array")
}
