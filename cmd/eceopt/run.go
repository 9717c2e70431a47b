package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"ece-placement-service/internal/adapters/repositories"
	"ece-placement-service/internal/api/dto"
	"ece-placement-service/internal/app"
	"ece-placement-service/internal/config"
	"ece-placement-service/internal/domain"
	"ece-placement-service/internal/ports"
	"ece-placement-service/internal/services"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	runInput     string
	runFromStore bool
	runCenters   int
	runOptimized bool
	runProvider  string
	runOutput    string
	runFormat    string
	runPersist   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Place centers and print the run report",
	Long:  "Loads tracts from a CSV file or the configured store, places centers one at a time and prints per-center ranks, impacts and benefited tracts.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts := runOptions{
			Input:     runInput,
			FromStore: runFromStore,
			Centers:   cfg.Optimizer.Centers,
			Optimized: cfg.Optimizer.Optimized,
			Output:    runOutput,
			Format:    runFormat,
			Persist:   runPersist,
		}
		if cmd.Flags().Changed("centers") {
			opts.Centers = runCenters
		}
		if cmd.Flags().Changed("optimized") {
			opts.Optimized = runOptimized
		}
		if runProvider != "" {
			cfg.Oracle.Provider = runProvider
		}

		return runPlacement(cmd.Context(), cfg, opts, os.Stdout)
	},
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "tract CSV to optimize")
	runCmd.Flags().BoolVar(&runFromStore, "from-store", false, "optimize the tracts held in the configured store")
	runCmd.Flags().IntVar(&runCenters, "centers", 0, "number of centers to place (default: optimizer.centers)")
	runCmd.Flags().BoolVar(&runOptimized, "optimized", true, "select candidates by estimated impact instead of worst-served only")
	runCmd.Flags().StringVar(&runProvider, "provider", "", "distance oracle: ors, google or estimate (default: oracle.provider)")
	runCmd.Flags().StringVar(&runOutput, "output", "", "write the final tract table to this CSV file")
	runCmd.Flags().StringVar(&runFormat, "format", "json", "report format: json or yaml")
	runCmd.Flags().BoolVar(&runPersist, "persist", false, "save the final tracts and the run to the store")
	rootCmd.AddCommand(runCmd)
}

type runOptions struct {
	Input     string
	FromStore bool
	Centers   int
	Optimized bool
	Output    string
	Format    string
	Persist   bool
}

func (o runOptions) validate() error {
	if (o.Input == "") == !o.FromStore {
		return eris.New("run: exactly one of --input or --from-store is required")
	}
	if o.Centers < 1 {
		return eris.New("run: --centers must be at least 1")
	}
	if o.Format != "json" && o.Format != "yaml" {
		return eris.Errorf("run: unknown format %q", o.Format)
	}
	return nil
}

func runPlacement(ctx context.Context, cfg *config.Config, opts runOptions, out io.Writer) error {
	if err := opts.validate(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	engine, err := cfg.Engine()
	if err != nil {
		return err
	}

	var store app.Store
	var distCache ports.DistanceCache
	if opts.FromStore || opts.Persist || cfg.Cache.Backend != config.CacheNone {
		stores, err := app.OpenStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer stores.Close()
		store, distCache = stores.Repo, stores.Cache
	}

	table, err := loadTable(ctx, opts, store)
	if err != nil {
		return err
	}

	oracle, err := app.NewOracle(cfg, distCache)
	if err != nil {
		return err
	}

	final, summary, err := services.NewOptimizer(oracle, engine).Run(ctx, table, opts.Centers, opts.Optimized)
	if err != nil {
		return eris.Wrap(err, "run")
	}

	if opts.Output != "" {
		if err := writeTractsFile(opts.Output, final); err != nil {
			return err
		}
	}
	if opts.Persist {
		if err := store.SavePlacementRun(ctx, final, summary); err != nil {
			return eris.Wrap(err, "run: persist")
		}
		zap.L().Info("run persisted", zap.String("run_id", summary.RunID))
	}

	return writeReport(out, dto.NewRunSummaryResponse(summary, opts.Persist), opts.Format)
}

func loadTable(ctx context.Context, opts runOptions, store app.Store) (*domain.TractTable, error) {
	if opts.Input != "" {
		table, err := repositories.LoadTractsFile(opts.Input)
		if err != nil {
			return nil, eris.Wrap(err, "run")
		}
		return table, nil
	}

	tracts, err := store.ListTracts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "run: load tracts from store")
	}
	if len(tracts) == 0 {
		return nil, eris.New("run: store holds no tracts (seed it with dbtool)")
	}
	table, err := domain.NewTractTable(tracts)
	if err != nil {
		return nil, eris.Wrap(err, "run")
	}
	return table, nil
}

func writeTractsFile(path string, table *domain.TractTable) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "run: create %q", path)
	}
	if err := repositories.WriteTractsCSV(f, table); err != nil {
		f.Close()
		return eris.Wrapf(err, "run: write %q", path)
	}
	return eris.Wrapf(f.Close(), "run: close %q", path)
}

func writeReport(w io.Writer, report dto.RunSummaryResponse, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return eris.Wrap(err, "write report")
		}
		return eris.Wrap(enc.Close(), "write report")
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(report), "write report")
	}
}
