package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/bgunnarsson/sqlagent/internal/keychain"
	"github.com/bgunnarsson/sqlagent/internal/logging"
)

func newAPIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage the OpenAI API key kept in the OS keychain",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set",
			Short: "Store an API key read from standard input",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				key, err := readSecret(cmd, "OpenAI API key: ")
				if err != nil {
					return err
				}
				store, err := openKeychain()
				if err != nil {
					return err
				}
				if err := store.SaveAPIKey(key); err != nil {
					return err
				}
				pterm.Success.WithWriter(cmd.OutOrStdout()).Println("API key saved to the keychain")
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Show the stored API key, masked",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				store, err := openKeychain()
				if err != nil {
					return err
				}
				key, err := store.LoadAPIKey()
				if errors.Is(err, keychain.ErrNoAPIKey) {
					pterm.Warning.WithWriter(cmd.OutOrStdout()).Println("No API key stored. Run: sqlagent apikey set")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), logging.MaskKey(key))
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Remove the stored API key",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				store, err := openKeychain()
				if err != nil {
					return err
				}
				if err := store.DeleteAPIKey(); err != nil {
					return err
				}
				pterm.Success.WithWriter(cmd.OutOrStdout()).Println("API key removed from the keychain")
				return nil
			},
		},
	)
	return cmd
}

// readSecret reads one line, without echo when stdin is a terminal.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
