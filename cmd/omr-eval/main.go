package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/fang"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	omreval "github.com/jamesainslie/go-omreval"
	"github.com/jamesainslie/go-omreval/annotation"
)

// Set by -ldflags at build time.
var version = "dev"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

type options struct {
	truth     string
	pred      string
	threshold float64
	format    string
	workers   int
	perImage  bool
	explain   int64
	verbose   bool
}

func main() {
	var opts options

	cmd := &cobra.Command{
		Use:   "omr-eval",
		Short: "Score OMR detector output against ground truth",
		Long: `Score OMR detector output against ground truth.

Each image's annotations are ordered left to right, grouped into chords of
overlapping boxes, and aligned against the ground truth. The dataset score is
the mean normalized distance (0 is perfect). Images present on only one side
count as 1.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), opts, cmd.Flags().Changed("explain"))
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.truth, "truth", "", "ground-truth annotations (COCO dataset or record array)")
	f.StringVar(&opts.pred, "pred", "", "detector output (record array with scores)")
	f.Float64Var(&opts.threshold, "threshold", 0.7, "minimum prediction score")
	f.StringVar(&opts.format, "format", "xywh", "bbox layout: xywh or xyxy")
	f.IntVar(&opts.workers, "workers", 0, "parallel alignments (0 = number of CPUs)")
	f.BoolVar(&opts.perImage, "per-image", false, "print every image's contribution")
	f.Int64Var(&opts.explain, "explain", 0, "print the alignment of one image id")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	_ = cmd.MarkFlagRequired("truth")
	_ = cmd.MarkFlagRequired("pred")

	if err := fang.Execute(context.Background(), cmd, fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func run(ctx context.Context, w io.Writer, opts options, explain bool) error {
	format, err := annotation.ParseBoxFormat(opts.format)
	if err != nil {
		return err
	}

	ev, err := omreval.New(
		omreval.WithThreshold(opts.threshold),
		omreval.WithBoxFormat(format),
		omreval.WithWorkers(opts.workers),
		omreval.WithLogger(newLogger(opts.verbose)),
	)
	if err != nil {
		return err
	}
	defer func() { _ = ev.Close() }()

	res, err := ev.EvaluateFiles(ctx, opts.truth, opts.pred)
	if err != nil {
		return err
	}

	printSummary(w, res, opts.threshold)
	if opts.perImage {
		printImages(w, res)
	}
	if explain {
		return printExplain(w, res, annotation.ImageID(opts.explain))
	}
	return nil
}

func printSummary(w io.Writer, res omreval.Result, threshold float64) {
	_, _ = fmt.Fprintln(w, titleStyle.Render("Average normalized distance"))
	row := func(label, value string) {
		_, _ = fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-20s", label)), value)
	}
	row("score", fmt.Sprintf("%.4f", res.Score))
	row("threshold", fmt.Sprintf("%.3f", threshold))
	row("images", humanize.Comma(int64(len(res.Images))))
	row("matched", humanize.Comma(int64(res.Matched)))
	row("missing predictions", humanize.Comma(int64(res.MissingPrediction)))
	row("missing truth", humanize.Comma(int64(res.MissingTruth)))
	row("median", fmt.Sprintf("%.4f", res.Stats.Median))
	row("std dev", fmt.Sprintf("%.4f", res.Stats.StdDev))
	row("worst", fmt.Sprintf("%.4f", res.Stats.Max))

	if len(res.Excluded) > 0 {
		_, _ = fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("%s malformed records excluded:", humanize.Comma(int64(len(res.Excluded))))))
		for _, ex := range res.Excluded {
			_, _ = fmt.Fprintf(w, "  %s\n", ex)
		}
	}
}

func printImages(w io.Writer, res omreval.Result) {
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, titleStyle.Render("Per image"))
	_, _ = fmt.Fprintf(w, "  %-12s %-20s %-8s %s\n", "image", "status", "dist", "contribution")
	for _, img := range res.Images {
		_, _ = fmt.Fprintf(w, "  %-12d %-20s %-8d %.4f\n", img.ImageID, img.Status, img.Distance, img.Contribution())
	}
}

func printExplain(w io.Writer, res omreval.Result, id annotation.ImageID) error {
	img, ok := res.Image(id)
	if !ok {
		return fmt.Errorf("image %d was not evaluated", id)
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Image %d (%s)", id, img.Status)))
	if img.Status != omreval.Matched {
		_, _ = fmt.Fprintf(w, "  present on one side only, contributes %.1f\n", omreval.Penalty)
		return nil
	}

	_, _ = fmt.Fprintf(w, "  truth %s\n", img.Truth)
	_, _ = fmt.Fprintf(w, "  pred  %s\n", img.Pred)

	al := img.Explain()
	for _, s := range al.Steps {
		truth, pred := "-", "-"
		if s.TruthIndex >= 0 {
			truth = img.Truth[s.TruthIndex].String()
		}
		if s.PredIndex >= 0 {
			pred = img.Pred[s.PredIndex].String()
		}
		_, _ = fmt.Fprintf(w, "  %-12s %-16s %-16s +%d\n", s.Op, truth, pred, s.Cost)
	}
	_, _ = fmt.Fprintf(w, "  %s %d / %d labels = %.4f\n",
		labelStyle.Render("distance"),
		al.Distance,
		max(img.Truth.TotalLabels(), img.Pred.TotalLabels()),
		img.Normalized,
	)
	return nil
}
