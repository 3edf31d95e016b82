package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cadforge/meshgen/internal/app"
	"github.com/cadforge/meshgen/internal/config"
	"github.com/cadforge/meshgen/internal/generation"

	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate <model>",
	Short: "Generate a mesh for a catalog model without starting the server",
	Args:  cobra.ExactArgs(1),
	RunE:  runGenerate,
}

func init() {
	flags := generateCmd.Flags()

	flags.StringP("parameters", "p", "{}", `Parameter overrides as JSON, e.g. '{"height": 90}'`)
	flags.StringP("output", "o", "", "Output mesh path; defaults to <model>_<hash>.stl in the working directory")
	flags.Bool("preview", false, "Also render a preview PNG next to the mesh")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	rawParams, _ := cmd.Flags().GetString("parameters")
	output, _ := cmd.Flags().GetString("output")
	preview, _ := cmd.Flags().GetBool("preview")

	parameters := map[string]float64{}
	if err := json.Unmarshal([]byte(rawParams), &parameters); err != nil {
		return fmt.Errorf("failed to parse --parameters: %w", err)
	}

	a, err := app.NewApp(config.MustGetConfig(),
		app.WithCatalog(),
		app.WithMQ(),
		app.WithPipeline(),
	)
	if err != nil {
		return err
	}
	defer a.Close()

	artifact, err := a.Pipeline().Generate(a.Context(), generation.Request{
		Model:      args[0],
		Parameters: parameters,
		Preview:    preview,
	})
	if err != nil {
		return err
	}
	defer artifact.Release()

	if output == "" {
		output = artifact.MeshName
	}
	if err := copyFile(artifact.MeshPath, output); err != nil {
		return err
	}
	fmt.Println("mesh written to", output)

	if artifact.PreviewPath != "" {
		previewOut := strings.TrimSuffix(output, filepath.Ext(output)) + ".png"
		if err := copyFile(artifact.PreviewPath, previewOut); err != nil {
			return err
		}
		fmt.Println("preview written to", previewOut)
	}

	for _, warning := range artifact.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", warning)
	}

	return nil
}

// copyFile copies rather than renames; the artifact workdir may live on a
// different filesystem than the destination.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}

	return out.Close()
}
