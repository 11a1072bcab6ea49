package cli

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/bgunnarsson/sqlagent/internal/db/sqlite"
	"github.com/bgunnarsson/sqlagent/internal/sampledb"
)

func newSampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sample [path]",
		Short: "Create the sample shop database (SQLite)",
		Long: `Creates customers, products, orders and order_items tables in a SQLite file
(example.db by default) and fills in a few customers and products. An existing
database that already has customers is left alone.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "example.db"
			if len(args) == 1 {
				path = args[0]
			}

			d, err := sqlite.Open(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer d.Close()

			res, err := sampledb.Create(cmd.Context(), d)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !res.Seeded {
				pterm.Info.WithWriter(out).Println(fmt.Sprintf("%s already holds data, nothing to seed", path))
				return nil
			}
			pterm.Success.WithWriter(out).Println(fmt.Sprintf("Database created at %s (%d customers, %d products)",
				path, res.Customers, res.Products))
			return nil
		},
	}
}
