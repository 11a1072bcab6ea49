package cli

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/bgunnarsson/sqlagent/internal/agent"
	"github.com/bgunnarsson/sqlagent/internal/app"
	"github.com/bgunnarsson/sqlagent/internal/logging"
)

func newSchemaCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the schema description the model receives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.LogLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			d, info, err := app.Open(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			schema, err := agent.New(d, nil, log, agentOptions(cfg)).Schema(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			pterm.DefaultBox.
				WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint(d.Dialect())).
				WithPadding(1).
				WithWriter(out).
				Println(info.Redacted())
			fmt.Fprintln(out)
			fmt.Fprintln(out, schema)
			return nil
		},
	}
}
