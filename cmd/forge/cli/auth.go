package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/draftforge/forge/internal/config"
	"github.com/draftforge/forge/internal/credential"
	"github.com/draftforge/forge/internal/genclient"
	"github.com/draftforge/forge/internal/history"
	"github.com/draftforge/forge/internal/log"
	"github.com/draftforge/forge/internal/setup"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Set up the code-generation API key",
	Long: `Set up the API key for the code-generation service.

The key is checked against the API before it is saved. A valid key is
stored encrypted under ~/.forge/credentials and reused on later runs.
When FORGE_API_KEY is set in the environment it takes priority over the
stored key and is never written to or removed from the store.

Subcommands:
  status    Show whether a working key is configured
  reset     Remove the stored key
  history   List recent auth events

Examples:
  forge auth                      # interactive key entry
  echo "$KEY" | forge auth        # piped key entry
  FORGE_API_KEY=... forge auth    # use the environment key`,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
}

// newForm builds a setup form wired to the encrypted store and a client
// pointed at the configured API endpoint.
func newForm() (*setup.Form, error) {
	globalCfg, _ := config.LoadGlobal()
	client := &genclient.Client{BaseURL: globalCfg.BaseURL}

	store, err := credential.OpenDefault()
	if err != nil {
		return nil, err
	}

	return setup.New(setup.Config{
		Store: store,
		Init:  client.Initialize,
		Notify: func(active bool) {
			log.Debug("auth state changed", "active", active)
		},
	}), nil
}

// recordAuthEvent appends an event to the auth history, best effort.
func recordAuthEvent(kind history.Kind, detail string) {
	path, err := history.DefaultPath()
	if err != nil {
		log.Debug("resolving auth history path failed", "error", err)
		return
	}
	store, err := history.OpenStore(path)
	if err != nil {
		log.Debug("opening auth history failed", "error", err)
		return
	}
	defer store.Close()
	if err := store.Append(kind, detail); err != nil {
		log.Debug("recording auth event failed", "error", err)
	}
}

func runAuth(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	form, err := newForm()
	if err != nil {
		return err
	}

	form.Mount(ctx)
	if form.Initialized() {
		recordAuthEvent(history.KindInitialized, "startup credential")
		fmt.Println(form.View())
		return nil
	}
	if msg := form.ErrorMessage(); msg != "" {
		cmd.PrintErrln(msg)
		recordAuthEvent(history.KindFailed, msg)
	}

	key, err := promptForKey()
	if err != nil {
		return err
	}

	form.SetInput(key)
	form.Submit(ctx)

	if !form.Initialized() {
		msg := form.ErrorMessage()
		recordAuthEvent(history.KindFailed, msg)
		return errors.New(msg)
	}

	recordAuthEvent(history.KindInitialized, "")
	fmt.Println(form.View())
	return nil
}

// promptForKey reads the API key: a masked TUI field on a terminal,
// plain stdin otherwise.
func promptForKey() (string, error) {
	if isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd()) {
		var key string
		input := huh.NewInput().
			Title("API key").
			Description("Find or create one at https://draftforge.dev/settings/keys").
			EchoMode(huh.EchoModePassword).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New(setup.MsgKeyRequired)
				}
				return nil
			}).
			Value(&key)
		if err := input.Run(); err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		return key, nil
	}
	return readSecret()
}

// readSecret reads a secret from stdin without echoing when stdin is a
// terminal. Piped input is read as a single line.
func readSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		if err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		fmt.Println()
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSuffix(line, "\n"), nil
}
