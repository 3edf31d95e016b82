package config

import (
	"errors"
	"path/filepath"

	"github.com/spf13/viper"
)

const DefaultHomeDir = "~/.meshgen"

var (
	// Topic generation lifecycle events are published to.
	DefaultGenerationsTopic = "meshgen/generations"
)

var (
	ErrHomeDirExpandFailed = errors.New("failed to expand home directory")
)

func setDefaults(homeDir string) {
	viper.SetDefault("host", "localhost")
	viper.SetDefault("port", 8881)
	viper.SetDefault("environment", "dev")

	viper.SetDefault("models_dir", filepath.Join(homeDir, "models"))
	viper.SetDefault("temp_dir", filepath.Join(homeDir, "tmp"))
	viper.SetDefault("public_dir", filepath.Join(homeDir, "public"))

	viper.SetDefault("freecad.bin", "freecadcmd")
	viper.SetDefault("freecad.timeout_sec", 120)

	viper.SetDefault("openscad.bin", "openscad")
	viper.SetDefault("openscad.timeout_sec", 60)
	viper.SetDefault("openscad.width", 512)
	viper.SetDefault("openscad.height", 512)
}
