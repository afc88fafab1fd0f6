package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/vizu-disain/vizu/internal/manifest"
)

// ApplyUpdate downloads the package announced by m, verifies it, and swaps it
// into pkg.InstallPath. Only one update per package identifier and per install
// path may run at a time; a concurrent call fails fast with a
// KindConcurrentUpdate error. On
// every failure the existing install is left exactly as it was.
func (c *Checker) ApplyUpdate(ctx context.Context, m *manifest.Manifest, pkg InstalledPackage) error {
	if !c.Active() {
		return ErrNotActivated
	}
	if m == nil {
		return newError(KindManifest, "apply", "no manifest")
	}
	if pkg.InstallPath == "" {
		return newError(KindSwap, "apply", "install path is empty")
	}
	if err := manifest.CheckDownloadURL(m.DownloadURL); err != nil {
		return &Error{Kind: KindManifest, Op: "apply", Err: err}
	}

	installPath, err := filepath.Abs(pkg.InstallPath)
	if err != nil {
		return &Error{Kind: KindSwap, Op: "apply", Err: fmt.Errorf("resolving install path: %w", err)}
	}

	unlock, ok := c.installs.tryLock("id:" + pkg.Identifier)
	if !ok {
		return newError(KindConcurrentUpdate, "apply", "an update of %s is already in progress", pkg.Identifier)
	}
	defer unlock()
	unlockPath, ok := c.installs.tryLock("path:" + installPath)
	if !ok {
		return newError(KindConcurrentUpdate, "apply", "another update is already writing %s", installPath)
	}
	defer unlockPath()

	logger := log.WithField("package", pkg.Identifier)
	logger.Infof("applying update %s -> %s", pkg.CurrentVersion, m.Version)
	parent, base := filepath.Dir(installPath), filepath.Base(installPath)

	// Staging lives next to the install so the final renames stay on one filesystem.
	staging, err := os.MkdirTemp(parent, "."+base+".update-*")
	if err != nil {
		return &Error{Kind: KindSwap, Op: "apply", Err: fmt.Errorf("creating staging directory: %w", err)}
	}
	keepStaging := false
	defer func() {
		if keepStaging {
			return
		}
		if err := os.RemoveAll(staging); err != nil {
			logger.Warnf("failed to remove staging directory %s: %v", staging, err)
		}
	}()

	archivePath, err := c.downloadPackage(ctx, m.DownloadURL, staging)
	if err != nil {
		return err
	}
	if err := verifyChecksum(archivePath, m.SHA256); err != nil {
		return err
	}
	root, err := ExtractPackage(archivePath, filepath.Join(staging, "package"))
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return &Error{Kind: KindDownload, Op: "apply", Err: err}
	}
	backup := filepath.Join(staging, "previous")
	if err := c.swapInstall(root, installPath, backup); err != nil {
		if _, statErr := os.Lstat(backup); statErr == nil {
			// Rollback did not complete; the original only exists in staging now.
			keepStaging = true
			logger.Errorf("update failed and original install could not be restored, it is kept at %s", backup)
		}
		logger.Errorf("update failed: %v", err)
		return err
	}

	logger.Infof("updated to %s", m.Version)
	c.markInstalled(ctx, pkg.Identifier, m)
	return nil
}

// markInstalled records that the installed version now matches the manifest,
// so the next cached result no longer reports an update.
func (c *Checker) markInstalled(ctx context.Context, packageID string, m *manifest.Manifest) {
	c.mu.Lock()
	st := c.stateLocked(ctx, packageID)
	if st == nil {
		c.mu.Unlock()
		return
	}
	st = st.clone()
	st.LastResult.CurrentVersion = m.Version
	st.LastResult.HasUpdate = false
	c.states[packageID] = st
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.Save(ctx, packageID, st.clone()); err != nil && !errors.Is(err, context.Canceled) {
		log.WithField("package", packageID).Warnf("failed to persist update state: %v", err)
	}
}
