package updater

import (
	"context"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/vizu-disain/vizu/internal/manifest"
)

const (
	// DefaultCheckTimeout caps a single manifest fetch.
	DefaultCheckTimeout = 5 * time.Second
	// DefaultMinInterval is the default minimum time between remote checks.
	DefaultMinInterval = 12 * time.Hour

	maxManifestSize = 1 << 20
	userAgent       = "vizu-updater"
)

// InstalledPackage is the local record of an installed package.
type InstalledPackage struct {
	Identifier     string `json:"identifier"`
	CurrentVersion string `json:"current_version"`
	InstallPath    string `json:"install_path"`
}

// CheckResult is produced by every check. Err is nil on success and an *Error
// otherwise; HasUpdate is never true when Err is set.
type CheckResult struct {
	HasUpdate      bool               `json:"has_update"`
	CurrentVersion string             `json:"current_version,omitempty"`
	RemoteVersion  string             `json:"remote_version,omitempty"`
	Manifest       *manifest.Manifest `json:"-"`
	Err            error              `json:"-"`
}

// CheckState is the per-package record of the last successful check.
type CheckState struct {
	LastCheckedAt  time.Time          `json:"last_checked_at"`
	LastResult     CheckResult        `json:"last_result"`
	CachedManifest *manifest.Manifest `json:"cached_manifest,omitempty"`
}

func (s *CheckState) clone() *CheckState {
	if s == nil {
		return nil
	}
	c := *s
	c.CachedManifest = s.CachedManifest.Clone()
	c.LastResult.Manifest = nil
	c.LastResult.Err = nil
	return &c
}

// StateStore persists CheckState keyed by package identifier. Load returns
// nil, nil when nothing has been stored for the package.
type StateStore interface {
	Load(ctx context.Context, packageID string) (*CheckState, error)
	Save(ctx context.Context, packageID string, state *CheckState) error
}

// Checker provides check and apply operations. Create it with New and call
// Activate before use.
type Checker struct {
	httpClient *http.Client
	timeout    time.Duration
	store      StateStore
	mirror     string
	now        func() time.Time
	rename     func(oldpath, newpath string) error
	progress   func(downloaded, total int64)

	activateMu sync.Mutex
	active     atomic.Bool

	mu       sync.Mutex
	states   map[string]*CheckState
	loaded   map[string]bool
	reserved map[string]bool
	fetches  singleflight.Group

	installs lockSet
}

// Option configures a Checker.
type Option func(*Checker)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(u *Checker) {
		u.httpClient = c
	}
}

// WithTimeout sets the timeout applied to each manifest fetch.
func WithTimeout(d time.Duration) Option {
	return func(u *Checker) {
		if d > 0 {
			u.timeout = d
		}
	}
}

// WithStore persists check state through s.
func WithStore(s StateStore) Option {
	return func(u *Checker) {
		u.store = s
	}
}

// WithMirror rewrites package downloads to mirror/<file name>.
func WithMirror(mirror string) Option {
	return func(u *Checker) {
		u.mirror = mirror
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(u *Checker) {
		u.now = now
	}
}

// WithProgress registers a callback invoked while a package downloads.
// total is -1 when the server does not announce a length.
func WithProgress(fn func(downloaded, total int64)) Option {
	return func(u *Checker) {
		u.progress = fn
	}
}

// New creates an inactive Checker with the given options.
func New(opts ...Option) *Checker {
	u := &Checker{
		httpClient: http.DefaultClient,
		timeout:    DefaultCheckTimeout,
		now:        time.Now,
		rename:     os.Rename,
		states:     make(map[string]*CheckState),
		loaded:     make(map[string]bool),
		reserved:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Activate prepares the Checker for use. Stores that need setup (for example
// a schema) are initialized here. Activate is idempotent; a failed activation
// may be retried.
func (c *Checker) Activate(ctx context.Context) error {
	c.activateMu.Lock()
	defer c.activateMu.Unlock()

	if c.active.Load() {
		return nil
	}
	if init, ok := c.store.(interface{ Init(context.Context) error }); ok {
		if err := init.Init(ctx); err != nil {
			return err
		}
	}
	c.active.Store(true)
	log.Debug("update checker activated")
	return nil
}

// Active reports whether Activate has completed.
func (c *Checker) Active() bool {
	return c.active.Load()
}

// State returns a copy of the last successful check state for packageID, or
// nil if the package was never checked.
func (c *Checker) State(ctx context.Context, packageID string) *CheckState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked(ctx, packageID).clone()
}

// Forget clears the recorded state for packageID so the next check runs
// immediately. Stores that support deletion drop their copy too.
func (c *Checker) Forget(ctx context.Context, packageID string) error {
	c.mu.Lock()
	delete(c.states, packageID)
	c.loaded[packageID] = true
	c.mu.Unlock()

	if d, ok := c.store.(interface {
		Delete(context.Context, string) error
	}); ok {
		return d.Delete(ctx, packageID)
	}
	return nil
}

// stateLocked returns the in-memory state, loading it from the store on first
// use. A store failure is logged and treated as "never checked".
func (c *Checker) stateLocked(ctx context.Context, packageID string) *CheckState {
	if c.loaded[packageID] || c.store == nil {
		return c.states[packageID]
	}
	c.loaded[packageID] = true

	st, err := c.store.Load(ctx, packageID)
	if err != nil {
		log.WithField("package", packageID).Warnf("failed to load update state: %v", err)
		return nil
	}
	if st != nil {
		c.states[packageID] = st
	}
	return st
}

// lockSet hands out non-blocking per-key locks.
type lockSet struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func (l *lockSet) tryLock(key string) (unlock func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held == nil {
		l.held = make(map[string]struct{})
	}
	if _, busy := l.held[key]; busy {
		return nil, false
	}
	l.held[key] = struct{}{}
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, true
}
