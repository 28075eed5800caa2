package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix      = "LINECHAT"
	envConfigDir   = envPrefix + "_CONFIG_DEFAULT_PATH"
	configFileName = "config.yaml"
	dotEnvFile     = ".env"
)

// Load resolves configuration and returns it with the config file path used.
// Precedence: defaults < config file < LINECHAT_* env vars < caller overrides.
// Variables from a .env file in the working directory count as env vars.
// A missing config file is created from the defaults.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	cfg := Default()
	path := resolveConfigPath(explicitPath)

	if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn().Err(err).Str("path", dotEnvFile).Msg("failed to load env file")
	}

	v, err := seededViper(cfg)
	if err != nil {
		return cfg, path, err
	}

	if err := mergeConfigFile(v, path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return cfg, path, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := writeDefaultConfig(path, cfg); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("failed to write default config")
		} else {
			logger.Info().Str("path", path).Msg("created default config")
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, path, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, path, nil
}

// seededViper returns a viper instance that already knows every key, so
// AutomaticEnv can override any of them.
func seededViper(defaults Config) (*viper.Viper, error) {
	data, err := yaml.Marshal(defaults)
	if err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("seed defaults: %w", err)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

func mergeConfigFile(v *viper.Viper, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return v.MergeConfig(f)
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}
	if dir := os.Getenv(envConfigDir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			return filepath.Join(dir, configFileName)
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		return filepath.Join(cwd, configFileName)
	}
	return configFileName
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
