package cmd

import (
	"encoding/json"
	"fmt"
	"image"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/yolodet/internal/benchmark"
	"github.com/MeKo-Tech/yolodet/internal/utils"
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark [image]",
	Short: "Time preprocessing stages and end-to-end detection",
	Long: `Run each preprocessing stage and the full detection pipeline repeatedly and
report latency percentiles and allocations.

Without an image a synthetic 640x480 picture is used. --stages-only skips the
model entirely, so it works without ONNX Runtime.

Examples:
  yolodet benchmark street.jpg --iterations 50
  yolodet benchmark --stages-only --json`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runBenchmarkCommand,
}

func init() {
	rootCmd.AddCommand(benchmarkCmd)

	f := benchmarkCmd.Flags()
	f.IntP("iterations", "n", 10, "timed iterations per benchmark")
	f.Int("warmup-runs", 1, "untimed pipeline runs before measuring")
	f.Bool("stages-only", false, "only benchmark preprocessing stages")
	f.Bool("json", false, "print results as JSON")
}

type benchmarkReport struct {
	Image   string                    `json:"image"`
	Results []benchmarkEntry          `json:"results"`
	Stages  *benchmark.StageBreakdown `json:"pipeline_stages,omitempty"`
}

type benchmarkEntry struct {
	benchmark.Result
	Error string `json:"error,omitempty"`
}

func runBenchmarkCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	iterations, _ := cmd.Flags().GetInt("iterations")
	warmup, _ := cmd.Flags().GetInt("warmup-runs")
	stagesOnly, _ := cmd.Flags().GetBool("stages-only")
	asJSON, _ := cmd.Flags().GetBool("json")
	if iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", iterations)
	}

	var img image.Image = benchmark.SyntheticImage(640, 480)
	source := "synthetic 640x480"
	if len(args) == 1 {
		loaded, _, err := utils.LoadImage(args[0])
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", args[0], err)
		}
		img, source = loaded, args[0]
	}

	pc, err := cfg.ToPipelineConfig()
	if err != nil {
		return err
	}
	suite := benchmark.NewSuite()
	if err := benchmark.AddPreprocessStages(suite, img, pc.Preprocess); err != nil {
		return err
	}

	ctx := commandContext(cmd)
	var rec *benchmark.PipelineRecorder
	if !stagesOnly {
		p, err := newPipeline(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()

		rec = benchmark.NewPipelineRecorder(p, img)
		if err := rec.Warmup(ctx, warmup); err != nil {
			return err
		}
		suite.Add(benchmark.StagePipeline, rec.Run)
	}

	slog.Debug("Running benchmarks", "image", source, "iterations", iterations, "benchmarks", suite.Names())
	results := suite.RunAll(ctx, iterations)

	report := benchmarkReport{Image: source, Results: make([]benchmarkEntry, len(results))}
	for i, r := range results {
		report.Results[i] = benchmarkEntry{Result: r}
		if r.Err != nil {
			report.Results[i].Error = r.Err.Error()
		}
	}
	if rec != nil {
		b := rec.Breakdown()
		report.Stages = &b
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintf(out, "Image: %s\n", source)
		suite.PrintResults(out)
		if report.Stages != nil {
			_, _ = fmt.Fprintf(out, "\nPipeline stages (mean): preprocess %v, inference %v, postprocess %v, %d detection(s)\n",
				report.Stages.Preprocess, report.Stages.Inference, report.Stages.Postprocess, report.Stages.Detections)
		}
	}

	for _, r := range results {
		if r.Err != nil {
			return fmt.Errorf("benchmark %s failed: %w", r.Name, r.Err)
		}
	}
	return nil
}
