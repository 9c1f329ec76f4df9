package cmd

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/yolodet/internal/config"
	"github.com/MeKo-Tech/yolodet/internal/detector"
	"github.com/MeKo-Tech/yolodet/internal/pipeline"
	"github.com/MeKo-Tech/yolodet/internal/testutil"
)

// resetCommandState puts flags, viper and the package globals back to their
// initial state so commands can be executed repeatedly within one process.
func resetCommandState(t *testing.T) {
	t.Helper()

	var resetFlags func(c *cobra.Command)
	resetFlags = func(c *cobra.Command) {
		reset := func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				require.NoError(t, sv.Replace(nil))
			} else {
				require.NoError(t, f.Value.Set(f.DefValue))
			}
			f.Changed = false
		}
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
		for _, sub := range c.Commands() {
			resetFlags(sub)
		}
	}
	resetFlags(rootCmd)

	viper.Reset()
	for key, flag := range flagBindings {
		require.NoError(t, viper.BindPFlag(key, flag))
	}

	globalConfig = nil
	configLoader = nil
	logOutput = io.Discard

	// Keep config discovery away from the developer's own files.
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

// executeCommand runs the root command with args and returns its output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeCommandWithInput(t, "", args...)
}

// executeCommandWithInput is executeCommand with stdin set to input.
func executeCommandWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	resetCommandState(t)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// useFakeEngine makes commands build their pipeline around a fake engine.
func useFakeEngine(t *testing.T, outputs *detector.RawOutputs) *testutil.FakeEngine {
	t.Helper()
	fake := &testutil.FakeEngine{Outputs: outputs}

	old := newPipeline
	newPipeline = func(cfg *config.Config) (*pipeline.Pipeline, error) {
		pc, err := cfg.ToPipelineConfig()
		if err != nil {
			return nil, err
		}
		return pipeline.NewBuilder().WithConfig(pc).WithEngine(fake).Build()
	}
	t.Cleanup(func() { newPipeline = old })
	return fake
}

// personAndCar returns outputs with a person filling the canvas and a car in
// its center quarter, boxes in yxyx order on a 416x416 canvas.
func personAndCar() *detector.RawOutputs {
	return testutil.MakeOutputs(80,
		testutil.FakeDetection{Class: 0, Score: 0.91, Box: [4]float32{0, 0, 416, 416}},
		testutil.FakeDetection{Class: 2, Score: 0.75, Box: [4]float32{104, 104, 312, 312}},
	)
}
