package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/vizu-disain/vizu/internal/manifest"
)

// ShouldCheckNow reports whether a remote check is due: true when the package
// was never checked or when at least minInterval has elapsed since the last
// successful check.
func ShouldCheckNow(state *CheckState, minInterval time.Duration, now time.Time) bool {
	if state == nil || state.LastCheckedAt.IsZero() {
		return true
	}
	return now.Sub(state.LastCheckedAt) >= minInterval
}

// ShouldCheckNow is ShouldCheckNow applied to the Checker's state for
// packageID and its clock.
func (c *Checker) ShouldCheckNow(ctx context.Context, packageID string, minInterval time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ShouldCheckNow(c.stateLocked(ctx, packageID), minInterval, c.now())
}

// CheckForUpdate fetches the manifest at manifestURL and compares its version
// to currentVersion. On success the package's CheckState is replaced; on any
// failure it is left as it was and HasUpdate is false.
//
// Concurrent calls for the same package and URL share one fetch. The shared
// fetch is bounded by the Checker's timeout rather than any caller's context,
// so a cancelled caller never fails the others.
func (c *Checker) CheckForUpdate(ctx context.Context, packageID, currentVersion, manifestURL string) CheckResult {
	res := CheckResult{CurrentVersion: currentVersion}
	if !c.Active() {
		res.Err = ErrNotActivated
		return res
	}

	logger := log.WithField("package", packageID)

	if err := checkManifestURL(manifestURL); err != nil {
		res.Err = &Error{Kind: KindManifest, Op: "check", Err: err}
		return res
	}
	current, err := parseSemver(currentVersion)
	if err != nil {
		res.Err = newError(KindVersionParse, "check", "current version %q: %w", currentVersion, err)
		return res
	}

	ch := c.fetches.DoChan(packageID+"\x00"+manifestURL, func() (any, error) {
		return c.fetchManifest(context.WithoutCancel(ctx), manifestURL)
	})
	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		res.Err = &Error{Kind: KindNetwork, Op: "fetch", Err: fmt.Errorf("waiting for manifest: %w", ctx.Err())}
		logger.Debugf("update check abandoned: %v", ctx.Err())
		return res
	}
	if r.Err != nil {
		logger.Warnf("update check failed: %v", r.Err)
		res.Err = r.Err
		return res
	}
	if r.Shared {
		logger.Trace("joined an in-flight manifest fetch")
	}
	m := r.Val.(*manifest.Manifest).Clone()

	remote, err := parseSemver(m.Version)
	if err != nil {
		res.Err = newError(KindVersionParse, "check", "remote version %q: %w", m.Version, err)
		logger.Warnf("update check failed: %v", res.Err)
		return res
	}

	res.RemoteVersion = m.Version
	res.HasUpdate = current.LessThan(remote)
	res.Manifest = m

	c.recordSuccess(ctx, packageID, res)

	if res.HasUpdate {
		logger.Infof("update available: %s -> %s", currentVersion, m.Version)
	} else {
		logger.Debugf("package is up to date (%s, remote %s)", currentVersion, m.Version)
	}
	return res
}

// CheckIfDue runs CheckForUpdate only when ShouldCheckNow allows it and no
// other caller is already checking the package. The decision and the
// reservation happen under one lock, so concurrent callers inside the
// interval never issue duplicate fetches. When no check runs, the last
// successful result is returned with ran=false.
func (c *Checker) CheckIfDue(ctx context.Context, pkg InstalledPackage, manifestURL string, minInterval time.Duration) (res CheckResult, ran bool) {
	if !c.Active() {
		return CheckResult{CurrentVersion: pkg.CurrentVersion, Err: ErrNotActivated}, false
	}

	c.mu.Lock()
	st := c.stateLocked(ctx, pkg.Identifier)
	if c.reserved[pkg.Identifier] || !ShouldCheckNow(st, minInterval, c.now()) {
		c.mu.Unlock()
		if st == nil {
			return CheckResult{CurrentVersion: pkg.CurrentVersion}, false
		}
		last := st.LastResult
		last.Manifest = st.CachedManifest.Clone()
		return last, false
	}
	c.reserved[pkg.Identifier] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.reserved, pkg.Identifier)
		c.mu.Unlock()
	}()

	return c.CheckForUpdate(ctx, pkg.Identifier, pkg.CurrentVersion, manifestURL), true
}

func (c *Checker) recordSuccess(ctx context.Context, packageID string, res CheckResult) {
	st := &CheckState{
		LastCheckedAt:  c.now(),
		LastResult:     res,
		CachedManifest: res.Manifest.Clone(),
	}
	st.LastResult.Manifest = nil
	st.LastResult.Err = nil

	c.mu.Lock()
	c.states[packageID] = st
	c.loaded[packageID] = true
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.Save(ctx, packageID, st.clone()); err != nil {
		log.WithField("package", packageID).Warnf("failed to persist update state: %v", err)
	}
}

// fetchManifest downloads and parses the manifest. Errors are *Error values of
// kind KindNetwork or KindManifest.
func (c *Checker) fetchManifest(ctx context.Context, manifestURL string) (*manifest.Manifest, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindManifest, Op: "fetch", Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: "fetch", Err: fmt.Errorf("fetching manifest: %w", err)}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Tracef("error closing manifest response body: %v", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, newError(KindNetwork, "fetch", "manifest server returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize+1))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: "fetch", Err: fmt.Errorf("reading manifest body: %w", err)}
	}
	if len(body) > maxManifestSize {
		return nil, newError(KindManifest, "fetch", "manifest exceeds %d bytes", maxManifestSize)
	}

	m, err := manifest.Parse(body)
	if err != nil {
		return nil, &Error{Kind: KindManifest, Op: "fetch", Err: err}
	}
	return m, nil
}

// checkManifestURL requires an absolute http or https URL.
func checkManifestURL(raw string) error {
	if raw == "" {
		return errors.New("manifest URL is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("manifest URL %q: %w", raw, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("manifest URL %q is not absolute", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("manifest URL %q: unsupported scheme %q", raw, u.Scheme)
	}
	return nil
}
