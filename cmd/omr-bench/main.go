package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/fang"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/go-omreval/internal/bench"
)

// Set by -ldflags at build time.
var version = "dev"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	bestStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Global flags
var (
	configPath string
	dbPath     string
	verbose    bool
)

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	root := &cobra.Command{
		Use:          "omr-bench",
		Short:        "Benchmark OMR detector checkpoints",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "bench.yaml", "benchmark config file")
	pf.StringVar(&dbPath, "db", getEnvOrDefault("OMR_DB_PATH", ""), "results database (overrides db_path in config)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newRunCmd(), newSweepCmd(), newHistoryCmd())

	if err := fang.Execute(context.Background(), root, fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() (bench.Config, error) {
	cfg, err := bench.LoadConfig(configPath)
	if err != nil {
		return bench.Config{}, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

func newRunCmd() *cobra.Command {
	var (
		recompute bool
		noStore   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Score every checkpoint of every configured dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if recompute {
				cfg.Recompute = true
			}

			logger := newLogger()
			runner, err := bench.NewRunner(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = runner.Close() }()

			table, results, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}
			printTable(cmd.OutOrStdout(), table)

			cached := 0
			for _, r := range results {
				if r.Cached {
					cached++
				}
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render(fmt.Sprintf(
				"%s checkpoints scored, %s from cache",
				humanize.Comma(int64(len(results))), humanize.Comma(int64(cached)))))

			if noStore {
				return nil
			}
			store, err := bench.OpenStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			id, err := store.SaveRun(configPath, cfg.Threshold, table)
			if err != nil {
				return err
			}
			logger.Info("run saved", "id", id, "db", cfg.DBPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&recompute, "recompute", false, "ignore cached average distances")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not save the run to the results database")
	return cmd
}

func printTable(w io.Writer, table bench.Table) {
	for _, metric := range table.Metrics() {
		for _, dataset := range table.Datasets(metric) {
			_, _ = fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s / %s", metric, dataset)))
			points := table.Series(metric, dataset)
			best, _ := bench.Best(points)
			for _, p := range points {
				line := fmt.Sprintf("  %-24s %10.4f", p.Checkpoint, p.Value)
				if metric == bench.MetricAD && p.Checkpoint == best.Checkpoint {
					line = bestStyle.Render(line + "  best")
				}
				_, _ = fmt.Fprintln(w, line)
			}
			_, _ = fmt.Fprintln(w)
		}
	}
}

func newSweepCmd() *cobra.Command {
	var dataset, checkpoint string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Score one checkpoint across a range of thresholds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			results, err := bench.SweepCheckpoint(cmd.Context(), cfg, dataset, checkpoint, newLogger())
			if err != nil {
				return err
			}
			if len(results) == 0 {
				return fmt.Errorf("sweep range [%v, %v) is empty", cfg.Sweep.Min, cfg.Sweep.Max)
			}

			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Threshold sweep: %s / %s", dataset, checkpoint)))
			_, _ = fmt.Fprintf(w, "  %-8s %-8s %-8s %-8s %-8s\n", "Thresh", "AD", "Matched", "NoPred", "NoTruth")

			byThreshold := append([]bench.SweepResult(nil), results...)
			sort.Slice(byThreshold, func(i, j int) bool {
				return byThreshold[i].Threshold < byThreshold[j].Threshold
			})
			for _, r := range byThreshold {
				_, _ = fmt.Fprintf(w, "  %-8.3f %-8.4f %-8d %-8d %-8d\n",
					r.Threshold, r.Score, r.Matched, r.MissingPrediction, r.MissingTruth)
			}

			best := results[0]
			_, _ = fmt.Fprintln(w, bestStyle.Render(fmt.Sprintf("Optimal: %.3f (AD: %.4f)", best.Threshold, best.Score)))
			return nil
		},
	}
	cmd.Flags().StringVar(&dataset, "dataset", "", "dataset name from the config")
	cmd.Flags().StringVar(&checkpoint, "checkpoint", "", "checkpoint directory name")
	_ = cmd.MarkFlagRequired("dataset")
	_ = cmd.MarkFlagRequired("checkpoint")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var metric, dataset string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored runs, or one metric's values across runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := dbPath
			if path == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				path = cfg.DBPath
			}

			store, err := bench.OpenStore(path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			w := cmd.OutOrStdout()
			if dataset == "" {
				runs, err := store.Runs()
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s stored runs", humanize.Comma(int64(len(runs))))))
				for _, r := range runs {
					_, _ = fmt.Fprintf(w, "  %s  %-20s thr %.3f  %s\n",
						r.ID, r.Source, r.Threshold, dimStyle.Render(humanize.Time(r.CreatedAt)))
				}
				return nil
			}

			rows, err := store.History(metric, dataset)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s / %s", metric, dataset)))
			for _, r := range rows {
				_, _ = fmt.Fprintf(w, "  %-24s %10.4f  %s\n",
					r.Checkpoint, r.Value, dimStyle.Render(humanize.Time(r.CreatedAt)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&metric, "metric", bench.MetricAD, "metric name")
	cmd.Flags().StringVar(&dataset, "dataset", "", "dataset name (lists runs when empty)")
	return cmd
}
