package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cadforge/meshgen/internal/templates"
	"github.com/cadforge/meshgen/internal/utils/pathutil"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "MESHGEN"

type Config struct {
	Port        int    `mapstructure:"port"`
	Host        string `mapstructure:"host"`
	Environment string `mapstructure:"environment"`

	HomeDir   string `mapstructure:"home_dir"`
	ModelsDir string `mapstructure:"models_dir"`
	TempDir   string `mapstructure:"temp_dir"`
	PublicDir string `mapstructure:"public_dir"`

	FreeCAD  FreeCADConfig  `mapstructure:"freecad"`
	OpenSCAD OpenSCADConfig `mapstructure:"openscad"`

	DB     *DBConfig     `mapstructure:"db"`
	Pulsar *PulsarConfig `mapstructure:"pulsar"`
}

type FreeCADConfig struct {
	Bin        string `mapstructure:"bin"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

type OpenSCADConfig struct {
	Bin        string `mapstructure:"bin"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
	Width      int    `mapstructure:"width"`
	Height     int    `mapstructure:"height"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type PulsarConfig struct {
	URL string `mapstructure:"url"`
}

var config *Config

// InitConfig resolves the home directory, writes template config files on
// first run, and loads config.yaml plus the environment into viper.
func InitConfig() error {
	homeDir, err := getHomeDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(homeDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create home directory: %w", err)
	}

	viper.Set("home_dir", homeDir)

	envFile := viper.GetString("env_file")
	if envFile == "" {
		envFile = filepath.Join(homeDir, ".env")
	}

	configFile := viper.GetString("config_file")
	if configFile == "" {
		configFile = filepath.Join(homeDir, "config.yaml")

		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			if err := templates.WriteConfig(configFile); err != nil {
				return fmt.Errorf("failed to create config.yaml file: %w", err)
			}
		}
	}

	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))
	viper.AutomaticEnv()
	viper.SetConfigFile(configFile)

	setDefaults(homeDir)

	if err := LoadConfig(false); err != nil {
		if errors.As(err, &viper.ConfigFileNotFoundError{}) {
			fmt.Println("No config file found. Using default config.")
		} else {
			return err
		}
	}

	return nil
}

func LoadConfig(reload bool) error {
	if config != nil && !reload {
		return fmt.Errorf("config already loaded")
	}

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config: %w", err)
	}

	config = &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshalling config: %w", err)
	}

	// Flag and env bindings materialize these sections even when empty; an
	// empty DSN or broker URL means the feature is off.
	if config.DB != nil && config.DB.DSN == "" {
		config.DB = nil
	}
	if config.Pulsar != nil && config.Pulsar.URL == "" {
		config.Pulsar = nil
	}

	return nil
}

func IsLoaded() bool {
	return config != nil
}

func GetConfig() *Config {
	return config
}

func MustGetConfig() *Config {
	if config == nil {
		panic("config not initialized")
	}

	return config
}

func getHomeDir() (string, error) {
	homeDir := viper.GetString("home_dir")
	if homeDir == "" {
		homeDir = DefaultHomeDir
	}

	homeDir, err := pathutil.ExpandPath(homeDir)
	if err != nil {
		return "", ErrHomeDirExpandFailed
	}

	return homeDir, nil
}
