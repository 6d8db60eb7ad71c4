package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show provider breaker and rate-limit state",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"providers": providerStatuses(e),
			"metrics":   e.Recorder.Snapshot(),
		})
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
