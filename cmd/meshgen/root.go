package cmd

import (
	"strings"

	"github.com/cadforge/meshgen/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "meshgen",
	Short: "Parametric CAD mesh generation server",
	Long:  "Serves parametric FreeCAD models over HTTP: clients override document parameters and get back a regenerated STL mesh, optionally with an OpenSCAD-rendered preview image.",

	// Runs before this command and any subcommands
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		viper.SetEnvPrefix(config.EnvPrefix)
		viper.SetEnvKeyReplacer(strings.NewReplacer(
			`-`, `_`,
			`.`, `_`,
		))
		viper.AutomaticEnv()

		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
			return err
		}

		return config.InitConfig()
	},
}

func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	pflags := rootCmd.PersistentFlags()

	pflags.String("home-dir", "", "Path to the meshgen home directory")
	pflags.String("config-file", "", "Path to the config file")
	pflags.String("env-file", "", "Path to the env file")

	viper.BindPFlag("home_dir", pflags.Lookup("home-dir"))
	viper.BindPFlag("config_file", pflags.Lookup("config-file"))
	viper.BindPFlag("env_file", pflags.Lookup("env-file"))

	rootCmd.AddCommand(runCmd, generateCmd, renderCmd)
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}
