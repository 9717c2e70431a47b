package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"ece-placement-service/internal/adapters/repositories"
	"ece-placement-service/internal/app"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

// runLister is implemented by stores that keep a browsable run history.
type runLister interface {
	ListRuns(ctx context.Context) ([]repositories.RunRecord, error)
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List persisted optimizer runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		stores, err := app.OpenStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer stores.Close()

		lister, ok := stores.Repo.(runLister)
		if !ok {
			return eris.Errorf("runs: store %q has no run history listing", cfg.Store.Driver)
		}
		runs, err := lister.ListRuns(ctx)
		if err != nil {
			return eris.Wrap(err, "runs")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

func formatRunsList(out io.Writer, runs []repositories.RunRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tMODE\tCENTERS\tIMPACT_MIN\tIMPACT_KM\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t-------\t----------\t---------\t-------")

	for _, r := range runs {
		mode := "unoptimized"
		if r.Optimized {
			mode = "optimized"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%.1f\t%.2f\t%s\n",
			r.RunID,
			mode,
			r.Centers,
			r.TotalImpactMin,
			r.TotalImpactKm,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}
