// Package branding provides compile-time identity values for the CLI and the
// plugin it ships.
//
// Forks edit branding.yaml in this package; Go's //go:embed bakes it into the
// binary.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

var (
	once     sync.Once
	defaults brand
)

type brand struct {
	CLIName     string `yaml:"cli_name"`
	DisplayName string `yaml:"display_name"`
	Description string `yaml:"description"`
	HomeDir     string `yaml:"home_dir"`
	EnvPrefix   string `yaml:"env_prefix"`
	GoModule    string `yaml:"go_module"`
	GitHubRepo  string `yaml:"github_repo"`
	Package     string `yaml:"package"`
	ManifestURL string `yaml:"manifest_url"`
}

func load() {
	once.Do(func() {
		// Set hard defaults in case the embedded file is missing/empty.
		defaults = brand{
			CLIName:     "vizu",
			DisplayName: "Vizu",
			Description: "Site extension toolkit",
			HomeDir:     ".vizu",
			EnvPrefix:   "VIZU",
			GoModule:    "github.com/vizu-disain/vizu",
			GitHubRepo:  "ratsepmarkus/vizu-plugin",
			Package:     "vizu-plugin",
			ManifestURL: "https://raw.githubusercontent.com/ratsepmarkus/vizu-plugin/main/vizu-plugin-info.json",
		}
		// Overlay with embedded YAML values.
		_ = yaml.Unmarshal(rawBranding, &defaults)
	})
}

// CLIName returns the root command name (e.g., "vizu").
func CLIName() string { load(); return defaults.CLIName }

// DisplayName returns the human-readable product name.
func DisplayName() string { load(); return defaults.DisplayName }

// Description returns the short product description.
func Description() string { load(); return defaults.Description }

// HomeDir returns the dot-directory name under $HOME (e.g., ".vizu").
func HomeDir() string { load(); return defaults.HomeDir }

// EnvPrefix returns the environment variable prefix (e.g., "VIZU").
func EnvPrefix() string { load(); return defaults.EnvPrefix }

// GoModule returns the Go module path.
func GoModule() string { load(); return defaults.GoModule }

// GitHubRepo returns the "owner/repo" string the plugin is released from.
func GitHubRepo() string { load(); return defaults.GitHubRepo }

// Package returns the default package identifier checked for updates.
func Package() string { load(); return defaults.Package }

// ManifestURL returns the default location of the release manifest.
func ManifestURL() string { load(); return defaults.ManifestURL }

// EnvVar returns a fully qualified env var name, e.g., EnvVar("HOME") → "VIZU_HOME".
func EnvVar(suffix string) string {
	load()
	return defaults.EnvPrefix + "_" + strings.ToUpper(suffix)
}
