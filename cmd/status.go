package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/placescore/affordability-cli/internal/engine"
	"github.com/placescore/affordability-cli/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest scoring run and score coverage",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		showDist, _ := cmd.Flags().GetBool("distribution")

		pool, err := dbPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		runs := engine.NewRunLog(pool)
		latest, err := runs.Latest(ctx)
		if err != nil {
			return eris.Wrap(err, "status: latest run")
		}
		if latest == nil {
			fmt.Println("No scoring run recorded yet.")
		} else {
			fmt.Printf("Latest run:   %s\n", latest.ID)
			fmt.Printf("Policy:       %s\n", latest.Policy)
			fmt.Printf("Status:       %s\n", latest.Status)
			fmt.Printf("Started:      %s\n", latest.StartedAt.Format("2006-01-02 15:04:05 MST"))
			if latest.CompletedAt != nil {
				fmt.Printf("Completed:    %s\n", latest.CompletedAt.Format("2006-01-02 15:04:05 MST"))
			}
			fmt.Printf("Components:   housing=%d col=%d tax=%d\n",
				latest.HousingCount, latest.COLCount, latest.TaxCount)
			fmt.Printf("Rows written: %d\n", latest.RecordsWritten)
			if latest.Error != "" {
				fmt.Printf("Error:        %s\n", latest.Error)
			}
		}

		scores := store.New(pool)
		coverage, err := scores.Coverage(ctx)
		if err != nil {
			return eris.Wrap(err, "status: coverage")
		}
		if len(coverage) > 0 {
			fmt.Println("\nScore coverage:")
			for _, row := range coverage {
				fmt.Printf("  %-6s %-9s %8d\n", row.GeoType, row.Quality, row.Count)
			}
		}

		if showDist {
			composites, err := scores.Composites(ctx)
			if err != nil {
				return eris.Wrap(err, "status: composites")
			}
			values := make([]float64, len(composites))
			for i, c := range composites {
				values[i] = c.Score
			}
			fmt.Printf("\nComposite distribution:\n%s", engine.Summarize(values))
		}

		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("distribution", false, "print the composite score distribution")
	rootCmd.AddCommand(statusCmd)
}
