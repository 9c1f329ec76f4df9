package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/yolodet/internal/models"
	"github.com/MeKo-Tech/yolodet/internal/onnx"
)

// testCmd checks that ONNX Runtime and the model can be found.
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test ONNX Runtime setup and model availability",
	Long: `Verify that the ONNX Runtime shared library loads and that the
configured model file exists.

Set --library-path or ONNXRUNTIME_SHARED_LIBRARY_PATH when the library lives outside the
standard locations.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runTestCommand,
}

func init() {
	rootCmd.AddCommand(testCmd)
}

func runTestCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, "Testing ONNX Runtime setup...")

	lib, err := onnx.ResolveLibraryPath(cfg.Model.LibraryPath, cfg.Model.GPU.Enabled)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Library: %s\n", lib)

	if err := onnx.AcquireEnvironment(lib, cfg.Model.GPU.Enabled); err != nil {
		return err
	}
	defer func() { _ = onnx.ReleaseEnvironment() }()
	_, _ = fmt.Fprintln(out, "Environment: initialized")

	modelPath := models.ResolveModelPath(cfg.Model.ModelsDir, cfg.Model.Path)
	if err := models.ValidateModelExists(modelPath); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Model: %s\n", modelPath)

	_, _ = fmt.Fprintln(out, "All checks passed.")
	return nil
}
