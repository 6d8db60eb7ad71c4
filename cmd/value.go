package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/collectorvault/appraise/internal/model"
)

var (
	valueSet       string
	valueNumber    string
	valueCondition string
	valueWindow    int
	valueIdentity  string
	valueRefresh   bool
)

var valueCmd = &cobra.Command{
	Use:   "value <item name>",
	Short: "Value a collectible item from recent comparable sales",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		q := model.PriceQuery{
			ItemName:   args[0],
			Set:        valueSet,
			Number:     valueNumber,
			Condition:  valueCondition,
			WindowDays: valueWindow,
		}

		result, err := e.Service.FetchValuation(ctx, q, valueIdentity, valueRefresh)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	valueCmd.Flags().StringVar(&valueSet, "set", "", "set or collection name")
	valueCmd.Flags().StringVar(&valueNumber, "number", "", "card or item number within the set")
	valueCmd.Flags().StringVar(&valueCondition, "condition", "", "condition filter (poor, good, excellent, near mint, mint)")
	valueCmd.Flags().IntVar(&valueWindow, "window", 0, "lookback window in days (default 90)")
	valueCmd.Flags().StringVar(&valueIdentity, "identity", "cli", "requester identity for cache keying")
	valueCmd.Flags().BoolVar(&valueRefresh, "force-refresh", false, "skip the cache and fetch fresh data")
	rootCmd.AddCommand(valueCmd)
}
