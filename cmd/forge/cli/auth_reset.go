package cli

import (
	"fmt"

	"github.com/draftforge/forge/internal/history"
	"github.com/spf13/cobra"
)

var authResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove the stored API key",
	Long: `Remove the API key from the local credential store.

Only the stored key is removed. A key supplied via FORGE_API_KEY stays
in effect and is picked up again on the next run.

Examples:
  forge auth reset`,
	RunE: runAuthReset,
}

func init() {
	authCmd.AddCommand(authResetCmd)
}

func runAuthReset(cmd *cobra.Command, args []string) error {
	form, err := newForm()
	if err != nil {
		return err
	}

	form.Reset()
	recordAuthEvent(history.KindReset, "")
	fmt.Println("API key removed")
	return nil
}
