package cmd

import (
	"encoding/json"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/yolodet/internal/pipeline"
	"github.com/MeKo-Tech/yolodet/internal/testutil"
)

func writeBatchImages(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteSolidPNG(t, dir, "a.png", 40, 30, color.White)
	testutil.WriteSolidPNG(t, dir, "b.png", 30, 40, color.White)
	testutil.WriteSolidPNG(t, filepath.Join(dir, "nested"), "c.png", 20, 20, color.White)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o600))
	return dir
}

func TestBatchCommand_Directory(t *testing.T) {
	fake := useFakeEngine(t, personAndCar())
	dir := writeBatchImages(t)

	output, err := executeCommand(t, "batch", dir, "--format", "json", "--workers", "2")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.Calls())
	assert.True(t, fake.Closed())

	var results []pipeline.ImageResult
	require.NoError(t, json.Unmarshal([]byte(output), &results))
	require.Len(t, results, 2)
	assert.Equal(t, filepath.Join(dir, "a.png"), results[0].Path)
	assert.Equal(t, filepath.Join(dir, "b.png"), results[1].Path)
	assert.Len(t, results[0].Detections, 2)
}

func TestBatchCommand_RecursiveWithFilters(t *testing.T) {
	fake := useFakeEngine(t, personAndCar())
	dir := writeBatchImages(t)
	outFile := filepath.Join(t.TempDir(), "out.json")

	_, err := executeCommand(t, "batch", dir, "--recursive", "--exclude", "b.*",
		"--format", "json", "--output", outFile)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.Calls())

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	var results []pipeline.ImageResult
	require.NoError(t, json.Unmarshal(data, &results))
	require.Len(t, results, 2)
	assert.Equal(t, filepath.Join(dir, "a.png"), results[0].Path)
	assert.Equal(t, filepath.Join(dir, "nested", "c.png"), results[1].Path)
}

func TestBatchCommand_StatsAndProgress(t *testing.T) {
	useFakeEngine(t, personAndCar())
	dir := writeBatchImages(t)

	output, err := executeCommand(t, "batch", dir, "--format", "text", "--stats", "--progress")
	require.NoError(t, err)
	assert.Contains(t, output, "a.png (40x30): 2 detection(s)")
	assert.Contains(t, output, "0/2 images")
	assert.Contains(t, output, "Processing Statistics:")
}

func TestBatchCommand_ContinueOnError(t *testing.T) {
	fake := useFakeEngine(t, nil)
	fake.Err = errors.New("engine offline")
	dir := writeBatchImages(t)

	output, err := executeCommand(t, "batch", dir, "--continue-on-error", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, output, "failed: ")
	assert.Contains(t, output, "engine offline")
}

func TestBatchCommand_StopOnError(t *testing.T) {
	fake := useFakeEngine(t, nil)
	fake.Err = errors.New("engine offline")
	dir := writeBatchImages(t)

	_, err := executeCommand(t, "batch", dir, "--workers", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine offline")
}

func TestBatchCommand_NoImages(t *testing.T) {
	useFakeEngine(t, personAndCar())
	_, err := executeCommand(t, "batch", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no supported images")
}

func TestBatchCommand_RequiresArgs(t *testing.T) {
	_, err := executeCommand(t, "batch")
	require.Error(t, err)
}
