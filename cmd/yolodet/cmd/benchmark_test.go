package cmd

import (
	"encoding/json"
	"errors"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/yolodet/internal/benchmark"
	"github.com/MeKo-Tech/yolodet/internal/testutil"
)

func TestBenchmarkCommand_StagesOnly(t *testing.T) {
	output, err := executeCommand(t, "benchmark", "--stages-only", "--iterations", "2", "--width", "64", "--height", "64")
	require.NoError(t, err)
	assert.Contains(t, output, "Image: synthetic 640x480")
	assert.Contains(t, output, "Benchmark Results:")
	assert.Contains(t, output, "letterbox: 2 iterations")
	assert.NotContains(t, output, "Pipeline stages")
}

func TestBenchmarkCommand_PipelineJSON(t *testing.T) {
	fake := useFakeEngine(t, personAndCar())
	img := testutil.WriteSolidPNG(t, t.TempDir(), "bench.png", 64, 48, color.White)

	output, err := executeCommand(t, "benchmark", img, "--iterations", "3", "--warmup-runs", "2", "--json")
	require.NoError(t, err)
	assert.Equal(t, 5, fake.Calls())
	assert.True(t, fake.Closed())

	var report struct {
		Image   string `json:"image"`
		Results []struct {
			Name       string `json:"name"`
			Iterations int    `json:"iterations"`
		} `json:"results"`
		Stages *benchmark.StageBreakdown `json:"pipeline_stages"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &report))
	assert.Equal(t, img, report.Image)
	require.Len(t, report.Results, 5)
	assert.Equal(t, benchmark.StagePipeline, report.Results[4].Name)
	assert.Equal(t, 3, report.Results[4].Iterations)
	require.NotNil(t, report.Stages)
	assert.Equal(t, 2, report.Stages.Detections)
}

func TestBenchmarkCommand_Errors(t *testing.T) {
	t.Run("engine failure", func(t *testing.T) {
		fake := useFakeEngine(t, nil)
		fake.Err = errors.New("offline")
		_, err := executeCommand(t, "benchmark", "--warmup-runs", "0", "--iterations", "1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "offline")
	})

	t.Run("bad iterations", func(t *testing.T) {
		_, err := executeCommand(t, "benchmark", "--stages-only", "--iterations", "0")
		require.Error(t, err)
	})

	t.Run("missing image", func(t *testing.T) {
		_, err := executeCommand(t, "benchmark", "/no/such/image.png", "--stages-only")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load")
	})
}
