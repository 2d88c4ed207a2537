package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a working API key is configured",
	RunE:  runAuthStatus,
}

func init() {
	authCmd.AddCommand(authStatusCmd)
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	form, err := newForm()
	if err != nil {
		return err
	}

	form.Mount(ctx)
	fmt.Println(form.View())
	return nil
}
