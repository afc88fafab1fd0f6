package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/viper"

	"github.com/vizu-disain/vizu/internal/branding"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Configuration keys.
const (
	KeyManifestURL   = "manifest_url"
	KeyPackage       = "package"
	KeyInstallPath   = "install_path"
	KeyCheckInterval = "check_interval"
	KeyCheckTimeout  = "check_timeout"
	KeyStateBackend  = "state_backend"
	KeyStateDir      = "state_dir"
	KeyLogLevel      = "log_level"
	KeyLogFile       = "log_file"
	KeyMirror        = "mirror"
)

// State backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

func defaults() map[string]any {
	return map[string]any{
		KeyManifestURL:   branding.ManifestURL(),
		KeyPackage:       branding.Package(),
		KeyInstallPath:   "",
		KeyCheckInterval: "12h",
		KeyCheckTimeout:  "5s",
		KeyStateBackend:  BackendFile,
		KeyStateDir:      "",
		KeyLogLevel:      "info",
		KeyLogFile:       "",
		KeyMirror:        "",
	}
}

// Keys returns every known configuration key in sorted order.
func Keys() []string {
	d := defaults()
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsKnown reports whether key is a recognised configuration key.
func IsKnown(key string) bool {
	_, ok := defaults()[key]
	return ok
}

// Dir returns the path to the config directory (~/.vizu/).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the config file (~/.vizu/config.yaml).
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

// Load initializes Viper to read from the config file and environment.
func Load() {
	for k, v := range defaults() {
		viper.SetDefault(k, v)
	}
	viper.SetConfigFile(FilePath())
	viper.SetConfigType(fileType)
	viper.SetEnvPrefix(branding.EnvPrefix())
	viper.AutomaticEnv()

	// Ignore error if config file doesn't exist yet.
	_ = viper.ReadInConfig()
}

// Get returns a config value by key. Returns empty string if not set.
func Get(key string) string {
	return viper.GetString(key)
}

// Duration returns a duration-valued key, or fallback when the value is
// missing, unparseable or not positive.
func Duration(key string, fallback time.Duration) time.Duration {
	raw := viper.GetString(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// StateDir returns the directory holding persisted update state.
func StateDir() string {
	if dir := Get(KeyStateDir); dir != "" {
		return dir
	}
	return filepath.Join(Dir(), "state")
}

// Set writes a config key-value pair and saves the config file.
func Set(key, value string) error {
	if !IsKnown(key) {
		return fmt.Errorf("unknown config key %q", key)
	}
	if err := validate(key, value); err != nil {
		return err
	}
	if err := EnsureDir(); err != nil {
		return err
	}

	viper.Set(key, value)

	configFile := FilePath()

	// Create the file if it doesn't exist.
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", configFile, err)
		}
		f.Close()
	}

	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

func validate(key, value string) error {
	switch key {
	case KeyCheckInterval, KeyCheckTimeout:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	case KeyStateBackend:
		if value != BackendFile && value != BackendSQLite {
			return fmt.Errorf("%s must be %q or %q", key, BackendFile, BackendSQLite)
		}
	}
	return nil
}
