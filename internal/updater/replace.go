package updater

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/vizu-disain/vizu/internal/platform"
)

// swapInstall replaces installPath with newRoot. The current install is first
// renamed to backupPath, then newRoot is renamed into place. If the second
// rename fails the backup is renamed back, so installPath either holds the
// complete new package or the untouched original. All paths must live on the
// same filesystem.
func (c *Checker) swapInstall(newRoot, installPath, backupPath string) error {
	_, err := os.Lstat(installPath)
	switch {
	case os.IsNotExist(err):
		if err := c.rename(newRoot, installPath); err != nil {
			return &Error{Kind: KindSwap, Op: "swap", Err: fmt.Errorf("installing new package: %w", err)}
		}
		return nil
	case err != nil:
		return &Error{Kind: KindSwap, Op: "swap", Err: fmt.Errorf("stat current install: %w", err)}
	}

	// Keep the original directory permissions on the new tree.
	if err := platform.CopyMode(installPath, newRoot); err != nil {
		log.Debugf("keeping extracted permissions on %s: %v", newRoot, err)
	}

	if err := c.rename(installPath, backupPath); err != nil {
		return &Error{Kind: KindSwap, Op: "swap", Err: fmt.Errorf("moving current install aside: %w", err)}
	}

	if err := c.rename(newRoot, installPath); err != nil {
		var merr *multierror.Error
		merr = multierror.Append(merr, fmt.Errorf("installing new package: %w", err))
		if rbErr := c.rollbackInstall(backupPath, installPath); rbErr != nil {
			merr = multierror.Append(merr, rbErr)
		} else {
			log.Warnf("update of %s failed, original install restored", installPath)
		}
		return &Error{Kind: KindSwap, Op: "swap", Err: merr.ErrorOrNil()}
	}
	return nil
}

// rollbackInstall restores the backup to installPath, clearing anything a
// failed rename may have left there.
func (c *Checker) rollbackInstall(backupPath, installPath string) error {
	if _, err := os.Lstat(installPath); err == nil {
		if err := os.RemoveAll(installPath); err != nil {
			return fmt.Errorf("rollback: clearing %s: %w", installPath, err)
		}
	}
	if err := c.rename(backupPath, installPath); err != nil {
		return fmt.Errorf("rollback failed, original kept at %s: %w", backupPath, err)
	}
	return nil
}
