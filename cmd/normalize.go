package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/placescore/affordability-cli/internal/engine"
	"github.com/placescore/affordability-cli/internal/store"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Re-rank persisted composite scores",
	Long: `Runs only the second pass: re-expresses every stored composite score
as a percent rank over the full score population. The score command
already does this after writing; normalize exists for recovering from
an interrupted run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := dbPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		dist, err := engine.NewNormalizer(store.New(pool)).Run(ctx)
		if err != nil {
			return eris.Wrap(err, "normalize")
		}

		fmt.Printf("Composite distribution:\n%s", dist)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
}
