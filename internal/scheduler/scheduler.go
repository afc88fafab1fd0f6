// Package scheduler runs update checks periodically for a long-lived caller.
// Checks go through updater.Checker.CheckIfDue, so a scheduler never fetches
// more often than the minimum interval. Failed checks are retried with an
// exponential backoff that never waits longer than the interval itself.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"github.com/vizu-disain/vizu/internal/updater"
)

const (
	retryInitialInterval = 30 * time.Second
	minWait              = 10 * time.Millisecond
)

// Scheduler periodically checks one package for updates.
type Scheduler struct {
	checker     *updater.Checker
	mu          sync.Mutex
	pkg         updater.InstalledPackage
	manifestURL string
	interval    time.Duration

	now        func() time.Time
	newBackOff func(interval time.Duration) backoff.BackOff
	onResult   func(updater.CheckResult)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithBackOff overrides the retry policy used after a failed check.
func WithBackOff(fn func(interval time.Duration) backoff.BackOff) Option {
	return func(s *Scheduler) {
		s.newBackOff = fn
	}
}

// WithOnResult registers a callback invoked after every check that ran.
func WithOnResult(fn func(updater.CheckResult)) Option {
	return func(s *Scheduler) {
		s.onResult = fn
	}
}

// WithClock overrides the time source used to compute the next due time.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a Scheduler. A non-positive interval falls back to
// updater.DefaultMinInterval.
func New(checker *updater.Checker, pkg updater.InstalledPackage, manifestURL string, interval time.Duration, opts ...Option) *Scheduler {
	if interval <= 0 {
		interval = updater.DefaultMinInterval
	}
	s := &Scheduler{
		checker:     checker,
		pkg:         pkg,
		manifestURL: manifestURL,
		interval:    interval,
		now:         time.Now,
		newBackOff:  defaultBackOff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// defaultBackOff never gives up and never waits longer than interval.
// Jitter is applied on top of MaxInterval, so the cap leaves room for it.
func defaultBackOff(interval time.Duration) backoff.BackOff {
	maxInterval := time.Duration(float64(interval) / (1 + backoff.DefaultRandomizationFactor))
	initial := retryInitialInterval
	if initial > maxInterval {
		initial = maxInterval
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     initial,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         maxInterval,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// SetCurrentVersion records a newly installed version, typically from the
// result callback after an update was applied.
func (s *Scheduler) SetCurrentVersion(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pkg.CurrentVersion = v
}

func (s *Scheduler) installed() updater.InstalledPackage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pkg
}

// Run checks until ctx is cancelled and returns ctx's error.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.checker.Activate(ctx); err != nil {
		return err
	}

	logger := log.WithField("package", s.pkg.Identifier)
	bo := s.newBackOff(s.interval)

	for {
		res, ran := s.checker.CheckIfDue(ctx, s.installed(), s.manifestURL, s.interval)
		if ran && s.onResult != nil {
			s.onResult(res)
		}

		var wait time.Duration
		switch {
		case ran && res.Err != nil:
			wait = bo.NextBackOff()
			if wait == backoff.Stop || wait > s.interval {
				wait = s.interval
			}
			logger.Debugf("update check failed, retrying in %s: %v", wait, res.Err)
		default:
			bo.Reset()
			wait = s.untilDue(ctx)
			if ran && res.HasUpdate {
				logger.Infof("update available: %s -> %s", res.CurrentVersion, res.RemoteVersion)
			}
		}

		if !sleep(ctx, wait) {
			return ctx.Err()
		}
	}
}

// untilDue returns how long until the next check is due.
func (s *Scheduler) untilDue(ctx context.Context) time.Duration {
	st := s.checker.State(ctx, s.pkg.Identifier)
	if st == nil || st.LastCheckedAt.IsZero() {
		return minWait
	}
	wait := st.LastCheckedAt.Add(s.interval).Sub(s.now())
	if wait < minWait {
		return minWait
	}
	return wait
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
