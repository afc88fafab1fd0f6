package updater

import (
	"context"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
)

// CheckAndPrintBanner prints an update banner from the last known state and,
// if a check is due, refreshes the state in a background goroutine for the
// next invocation. It never blocks on the network.
func (c *Checker) CheckAndPrintBanner(ctx context.Context, w io.Writer, pkg InstalledPackage, manifestURL string, minInterval time.Duration) {
	if st := c.State(ctx, pkg.Identifier); st != nil && st.LastResult.RemoteVersion != "" {
		if available, err := IsUpdateAvailable(pkg.CurrentVersion, st.LastResult.RemoteVersion); err == nil && available {
			PrintUpdateBanner(w, pkg.CurrentVersion, st.LastResult.RemoteVersion)
		}
	}

	if c.ShouldCheckNow(ctx, pkg.Identifier, minInterval) {
		go c.Bootstrap(context.WithoutCancel(ctx), pkg, manifestURL, minInterval)
	}
}

// PrintUpdateBanner prints the update notification to w.
func PrintUpdateBanner(w io.Writer, current, latest string) {
	fmt.Fprintf(w, "\nUpdate available: %s -> %s\n", current, latest)
	fmt.Fprintf(w, "    Run `vizu update` to upgrade\n\n")
}

// Bootstrap runs a single due check and reports the outcome in the log. It is
// meant to be fired once from a host's after-startup hook, usually in its own
// goroutine. Failures are logged and otherwise ignored.
func (c *Checker) Bootstrap(ctx context.Context, pkg InstalledPackage, manifestURL string, minInterval time.Duration) CheckResult {
	logger := log.WithField("package", pkg.Identifier)
	if err := c.Activate(ctx); err != nil {
		logger.Warnf("update checker disabled: %v", err)
		return CheckResult{CurrentVersion: pkg.CurrentVersion, Err: err}
	}

	res, ran := c.CheckIfDue(ctx, pkg, manifestURL, minInterval)
	switch {
	case !ran:
		logger.Trace("update check not due")
	case res.Err != nil:
		logger.Debugf("startup update check failed: %v", res.Err)
	}
	return res
}
