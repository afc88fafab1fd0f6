package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/vizu-disain/vizu/internal/config"
	"github.com/vizu-disain/vizu/internal/platform"
	"github.com/vizu-disain/vizu/internal/plugin"
	"github.com/vizu-disain/vizu/internal/store"
	"github.com/vizu-disain/vizu/internal/updater"
)

const sqliteFileName = "state.db"

// environment bundles the configured checker with the settings commands share.
type environment struct {
	checker     *updater.Checker
	store       updater.StateStore
	packageID   string
	manifestURL string
	installPath string
	interval    time.Duration
	closers     []func() error
}

// newEnvironment builds an activated Checker from the loaded configuration.
func newEnvironment(ctx context.Context, extra ...updater.Option) (*environment, error) {
	env := &environment{
		packageID:   config.Get(config.KeyPackage),
		manifestURL: config.Get(config.KeyManifestURL),
		installPath: config.Get(config.KeyInstallPath),
		interval:    config.Duration(config.KeyCheckInterval, updater.DefaultMinInterval),
	}

	st, err := env.openStore()
	if err != nil {
		return nil, err
	}
	env.store = st

	opts := []updater.Option{
		updater.WithStore(st),
		updater.WithTimeout(config.Duration(config.KeyCheckTimeout, updater.DefaultCheckTimeout)),
	}
	if mirror := config.Get(config.KeyMirror); mirror != "" {
		opts = append(opts, updater.WithMirror(mirror))
	}
	opts = append(opts, extra...)

	env.checker = updater.New(opts...)
	if err := env.checker.Activate(ctx); err != nil {
		env.Close()
		return nil, fmt.Errorf("activating update checker: %w", err)
	}
	return env, nil
}

func (e *environment) openStore() (updater.StateStore, error) {
	dir := config.StateDir()
	switch backend := config.Get(config.KeyStateBackend); backend {
	case "", config.BackendFile:
		return updater.NewFileStore(dir), nil
	case config.BackendSQLite:
		if err := os.MkdirAll(dir, platform.DirPermDefault); err != nil {
			return nil, fmt.Errorf("creating state directory %s: %w", dir, err)
		}
		s, err := store.New(filepath.Join(dir, sqliteFileName))
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, s.Close)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}

// Close releases the state store.
func (e *environment) Close() {
	for _, c := range e.closers {
		_ = c()
	}
	e.closers = nil
}

// installedPackage describes the configured package. Empty arguments fall
// back to configuration and to the version found in the installed files.
func (e *environment) installedPackage(installPath, currentVersion string) updater.InstalledPackage {
	if installPath == "" {
		installPath = e.installPath
	}
	if currentVersion == "" {
		currentVersion = detectVersion(installPath, e.packageID)
	}
	return updater.InstalledPackage{
		Identifier:     e.packageID,
		CurrentVersion: currentVersion,
		InstallPath:    installPath,
	}
}

var versionHeader = regexp.MustCompile(`(?m)^[\s*#/]*Version:\s*(\S+)\s*$`)

// detectVersion reads the "Version:" header of <installPath>/<slug>.php.
// The version built into this binary is used when there is none.
func detectVersion(installPath, slug string) string {
	if installPath == "" {
		return plugin.Version
	}
	data, err := os.ReadFile(filepath.Join(installPath, slug+".php"))
	if err != nil {
		return plugin.Version
	}
	m := versionHeader.FindSubmatch(data)
	if m == nil {
		return plugin.Version
	}
	return string(m[1])
}
