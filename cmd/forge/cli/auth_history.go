package cli

import (
	"fmt"
	"time"

	"github.com/draftforge/forge/internal/history"
	"github.com/spf13/cobra"
)

var historyLimit int

var authHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent auth events",
	RunE:  runAuthHistory,
}

func init() {
	authCmd.AddCommand(authHistoryCmd)
	authHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of events to show")
}

func runAuthHistory(cmd *cobra.Command, args []string) error {
	path, err := history.DefaultPath()
	if err != nil {
		return err
	}
	store, err := history.OpenStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.Recent(historyLimit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No auth events recorded")
		return nil
	}

	for _, e := range events {
		line := fmt.Sprintf("%s  %-12s", e.Time.Local().Format(time.DateTime), e.Kind)
		if e.Detail != "" {
			line += "  " + e.Detail
		}
		fmt.Println(line)
	}
	return nil
}
