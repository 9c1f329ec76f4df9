package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/yolodet/internal/detector"
	"github.com/MeKo-Tech/yolodet/internal/testutil"
	"github.com/MeKo-Tech/yolodet/internal/utils"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		generateImages  = flag.Bool("images", true, "Generate synthetic test images")
		generateOutputs = flag.Bool("outputs", true, "Generate recorded model outputs")
		outDir          = flag.String("dir", "", "Output directory (default: <project root>/testdata)")
		help            = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate test data for yolodet.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                    # Generate everything under testdata/\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -outputs=false     # Generate only images\n", os.Args[0])
	}
	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	dir := *outDir
	if dir == "" {
		root, err := testutil.GetProjectRoot()
		if err != nil {
			slog.Error("Failed to find project root", "error", err)
			os.Exit(1)
		}
		dir = filepath.Join(root, "testdata")
	}

	if *generateImages {
		n, err := writeImages(filepath.Join(dir, "images"))
		if err != nil {
			slog.Error("Failed to generate test images", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated synthetic test images", "count", n)
	}

	if *generateOutputs {
		n, err := writeOutputs(filepath.Join(dir, "outputs"))
		if err != nil {
			slog.Error("Failed to generate model outputs", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated model outputs", "count", n)
	}

	slog.Info("Test data generation completed", "dir", dir)
}

// sampleImage is one synthetic image chosen to hit a letterbox case.
type sampleImage struct {
	name     string
	w, h     int
	gradient bool
}

var sampleImages = []sampleImage{
	{name: "square_416.png", w: 416, h: 416},
	{name: "landscape_832x624.png", w: 832, h: 624, gradient: true},
	{name: "portrait_300x600.png", w: 300, h: 600, gradient: true},
	{name: "wide_1000x3.png", w: 1000, h: 3},
	{name: "tiny_1x1.png", w: 1, h: 1},
	{name: "small_64x48.jpg", w: 64, h: 48, gradient: true},
}

func writeImages(dir string) (int, error) {
	for _, s := range sampleImages {
		img := testutil.SolidImage(s.w, s.h, color.NRGBA{R: 200, G: 60, B: 30, A: 255})
		if s.gradient {
			img = testutil.GradientImage(s.w, s.h)
		}
		if err := utils.SaveImage(img, filepath.Join(dir, s.name)); err != nil {
			return 0, fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return len(sampleImages), nil
}

// sampleOutputs are NMS outputs for the postprocess command, in its JSON form.
var sampleOutputs = map[string]detector.NestedOutputs{
	"single_car": {
		Indices: [][][]int{{{0, 2, 1}}},
		Scores:  [][][]float32{{{0.1, 0.2}, {0.3, 0.4}, {0.5, 0.9}}},
		Boxes:   [][][]float32{{{0, 0, 1, 1}, {10, 20, 30, 40}}},
	},
	"two_groups": {
		Indices: [][][]int{{{0, 1, 0}, {0, 0, 1}}, {{0, 0, 0}}},
		Scores:  [][][]float32{{{0.1, 0.7}, {0.8, 0.2}}},
		Boxes:   [][][]float32{{{1, 2, 3, 4}, {5, 6, 7, 8}}},
	},
	"empty": {
		Indices: [][][]int{{}},
		Scores:  [][][]float32{{{0.5}}},
		Boxes:   [][][]float32{{{1, 2, 3, 4}}},
	},
	"out_of_range": {
		Indices: [][][]int{{{0, 0, 0}, {0, 0, 3}}},
		Scores:  [][][]float32{{{0.5, 0.6}}},
		Boxes:   [][][]float32{{{1, 2, 3, 4}, {5, 6, 7, 8}}},
	},
}

func writeOutputs(dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("failed to create outputs directory: %w", err)
	}
	for name, out := range sampleOutputs {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return 0, err
		}
		if err := os.WriteFile(filepath.Join(dir, name+".json"), data, 0o600); err != nil {
			return 0, err
		}
	}
	return len(sampleOutputs), nil
}
