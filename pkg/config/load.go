package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides: CERTSTORE_LOGGING_LEVEL=DEBUG
// sets logging.level.
const EnvPrefix = "CERTSTORE"

// Load reads configPath, or config.yaml in the default directory when it is
// empty, and applies environment overrides. Without a file the defaults are
// returned.
func Load(configPath string) (*Config, error) {
	v := newViper(configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return GetDefaultConfig(), nil
	}
	return decode(v)
}

// MustLoad is Load for commands that need a file, with instructions on how
// to create one when it is missing.
func MustLoad(configPath string) (*Config, error) {
	switch {
	case configPath == "" && !DefaultConfigExists():
		return nil, fmt.Errorf("no configuration file at %s\n\n"+
			"Create one with:\n  certstore init\n\n"+
			"or point to an existing file:\n  certstore <command> --config /path/to/config.yaml",
			GetDefaultConfigPath())
	case configPath == "":
		configPath = GetDefaultConfigPath()
	default:
		if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Create it with:\n  certstore init --config %s", configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML. The file is private to the owner because
// it may hold the token and upload secrets.
func SaveConfig(cfg *Config, path string) error {
	return writeConfig(path, "", cfg)
}

// writeConfig writes header followed by cfg as YAML. The file may hold
// secrets, so it is only readable by its owner.
func writeConfig(path, header string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(header), data...), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return v
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	return v
}

// readConfigFile reports whether a file was found. A missing explicit path
// counts as not found.
func readConfigFile(v *viper.Viper) (bool, error) {
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &notFound), errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
}

// decode turns the viper state into a defaulted, validated Config.
// Durations accept "30s"; sizes accept "50Mi" through ByteSize's
// UnmarshalText; comma-separated strings fill lists, which is how
// environment variables set them.
func decode(v *viper.Viper) (*Config, error) {
	hooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hooks)); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// getConfigDir is $XDG_CONFIG_HOME/certstore, else ~/.config/certstore,
// else the working directory.
func getConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "certstore")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "certstore")
	}
	return "."
}

// GetConfigDir is where init writes and Load looks by default.
func GetConfigDir() string {
	return getConfigDir()
}

func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
