package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/yolodet/internal/detector"
	"github.com/MeKo-Tech/yolodet/internal/models"
	"github.com/MeKo-Tech/yolodet/internal/pipeline"
)

// postprocessCmd extracts detections from recorded model outputs.
var postprocessCmd = &cobra.Command{
	Use:   "postprocess <outputs.json|->",
	Short: "Extract detections from recorded NMS outputs",
	Long: `Read model outputs as nested JSON arrays and print the detections they select.

The input is an object with "indices" ([groups][n][3] of batch, class, slot),
"scores" ([batches][classes][slots]) and "boxes" ([batches][slots][4]).
Only the first index group is used. Use "-" to read from stdin.

Example:
  echo '{"indices":[[[0,2,1]]],"scores":[[[0.1,0.2],[0.3,0.4],[0.5,0.9]]],
         "boxes":[[[0,0,1,1],[10,20,30,40]]]}' | yolodet postprocess - --format json`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runPostprocessCommand,
}

func init() {
	rootCmd.AddCommand(postprocessCmd)
}

type labelledDetection struct {
	ClassIndex int        `json:"class_index" yaml:"class_index"`
	Label      string     `json:"label"       yaml:"label"`
	Score      float32    `json:"score"       yaml:"score"`
	Box        [4]float32 `json:"box"         yaml:"box"`
}

func runPostprocessCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	var r io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open outputs: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var nested detector.NestedOutputs
	if err := json.NewDecoder(r).Decode(&nested); err != nil {
		return fmt.Errorf("failed to decode outputs: %w", err)
	}
	raw, err := nested.Raw()
	if err != nil {
		return err
	}
	dets, err := raw.Postprocess()
	if err != nil {
		return fmt.Errorf("postprocess: %w", err)
	}

	classes := models.DefaultClasses()
	if cfg.Postprocess.ClassesFile != "" {
		if classes, err = models.LoadClassFile(cfg.Postprocess.ClassesFile); err != nil {
			return err
		}
	}

	records := dets.Records()
	out := make([]labelledDetection, len(records))
	for i, d := range records {
		out[i] = labelledDetection{
			ClassIndex: d.ClassIndex,
			Label:      classes.Name(d.ClassIndex),
			Score:      d.Score,
			Box:        d.Box,
		}
	}

	s, err := formatLabelled(out, cfg.Output.Format)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), s, cfg.Output.File)
}

func formatLabelled(dets []labelledDetection, format string) (string, error) {
	switch strings.ToLower(format) {
	case "", pipeline.FormatJSON:
		b, err := json.MarshalIndent(dets, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b) + "\n", nil
	case pipeline.FormatYAML, "yml":
		b, err := yaml.Marshal(dets)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case pipeline.FormatText, "txt":
		var sb strings.Builder
		fmt.Fprintf(&sb, "%d detection(s)\n", len(dets))
		for _, d := range dets {
			fmt.Fprintf(&sb, "  %-16s %.4f  [%g, %g, %g, %g]\n",
				d.Label, d.Score, d.Box[0], d.Box[1], d.Box[2], d.Box[3])
		}
		return sb.String(), nil
	default:
		return "", fmt.Errorf("unsupported format for postprocess: %s", format)
	}
}
