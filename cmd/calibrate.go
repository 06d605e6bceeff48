package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/glasslink/faceid/internal/calibrate"
	"github.com/glasslink/faceid/internal/config"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate <dataset-dir>",
	Short: "Sweep match thresholds over a labeled dataset",
	Long: `Measure false-accept and false-reject rates across a threshold sweep.
The dataset directory holds one subdirectory per person, each containing
that person's photos:

  dataset/
    alice/  a1.jpg a2.jpg
    bob/    b1.jpg b2.jpg

The report shows the error rates at each threshold and the recommended
tolerance. The recommendation is printed only; set FACE_TOLERANCE yourself
to adopt it.`,
	Args: cobra.ExactArgs(1),
	RunE: runCalibrate,
}

func init() {
	rootCmd.AddCommand(calibrateCmd)
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	dir := args[0]

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("dataset directory %s not found", dir)
	}

	ex := buildExtractor(cfg)
	defer ex.Close()

	grid := calibrate.Grid{
		Start: cfg.Defaults.Calibration.Start,
		End:   cfg.Defaults.Calibration.End,
		Step:  cfg.Defaults.Calibration.Step,
	}

	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Extracting faces"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("photos"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionFullWidth(),
			)
		}
		bar.Set(done)
	}

	report, err := calibrate.Run(dir, ex, grid, progress)
	if err != nil {
		return fmt.Errorf("calibration failed: %w", err)
	}
	fmt.Println()

	printCalibrationReport(report)
	return nil
}

func printCalibrationReport(report *calibrate.Report) {
	fmt.Printf("Dataset: %d people, %d usable images\n", report.People, report.Images)
	fmt.Printf("Pairs:   %d genuine, %d impostor\n\n", report.Positives, report.Negatives)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "THRESHOLD\tFALSE ACCEPTS\tFAR\tFALSE REJECTS\tFRR\tACCURACY")
	for _, row := range report.Rows {
		marker := ""
		if row.Threshold == report.Recommended {
			marker = "  <- recommended"
		}
		fmt.Fprintf(w, "%.2f\t%d\t%.1f%%\t%d\t%.1f%%\t%.1f%%%s\n",
			row.Threshold, row.FalseAccepts, row.FAR,
			row.FalseRejects, row.FRR, row.Accuracy, marker)
	}
	w.Flush()

	fmt.Printf("\nRecommended tolerance: %.2f\n", report.Recommended)
	if report.PerfectSeparation {
		fmt.Printf("Perfect separation: genuine and impostor pairs split cleanly between %.4f and %.4f\n",
			report.GapLow, report.GapHigh)
	}

	if len(report.Skipped) > 0 {
		fmt.Printf("\nSkipped %d images:\n", len(report.Skipped))
		for _, s := range report.Skipped {
			fmt.Printf("  %s: %s\n", s.Path, s.Reason)
		}
	}
}
