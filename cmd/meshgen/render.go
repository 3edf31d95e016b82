package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cadforge/meshgen/internal/config"
	"github.com/cadforge/meshgen/internal/render"
	"github.com/cadforge/meshgen/pkg/logger"

	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render <mesh.stl>",
	Short: "Render a mesh file to a preview PNG",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

func init() {
	flags := renderCmd.Flags()

	flags.StringP("output", "o", "", "Output image path; defaults to the mesh path with a .png extension")
	flags.Int("width", 0, "Image width in pixels; defaults to the configured size")
	flags.Int("height", 0, "Image height in pixels; defaults to the configured size")
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg := config.MustGetConfig()

	log, err := logger.InitLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	meshPath := args[0]
	output, _ := cmd.Flags().GetString("output")
	width, _ := cmd.Flags().GetInt("width")
	height, _ := cmd.Flags().GetInt("height")

	if output == "" {
		output = strings.TrimSuffix(meshPath, filepath.Ext(meshPath)) + ".png"
	}
	if width <= 0 {
		width = cfg.OpenSCAD.Width
	}
	if height <= 0 {
		height = cfg.OpenSCAD.Height
	}

	renderer := render.NewRenderer(cfg.OpenSCAD, log)
	if err := renderer.Render(cmd.Context(), meshPath, output, width, height); err != nil {
		return err
	}

	fmt.Println("preview written to", output)
	return nil
}
