// Package plugin is the Vizu site extension: a year shortcode, a page-builder
// widget category, an optional cart-button text override and the self-update
// bootstrap.
//
// A Plugin is created with New and does nothing until Activate registers its
// hooks with the host. There is no package-level instance; whatever composes
// the host owns the Plugin.
package plugin

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vizu-disain/vizu/internal/hooks"
	"github.com/vizu-disain/vizu/internal/updater"
)

const (
	// Slug identifies the plugin to the update checker.
	Slug = "vizu-plugin"
	// Version is the plugin release shipped in this build.
	Version = "1.0.0"

	ShortcodeYear = "vizu_year"

	CategoryID    = "vizu-widgets"
	CategoryTitle = "Vizu Widgets"
	CategoryIcon  = "fa fa-plug"

	FilterAddToCartText = "woocommerce_product_single_add_to_cart_text"
	AddToCartText       = "Add to Basket"
)

// Host is the hook registration surface the plugin needs.
type Host interface {
	AddAction(event string, fn hooks.ActionFunc, priority int)
	AddShortcode(tag string, fn hooks.ShortcodeFunc) error
}

// Commerce is the e-commerce extension's filter pipeline. It is only present
// when the host runs a shop.
type Commerce interface {
	AddFilter(name string, fn hooks.FilterFunc, priority int)
}

// Category describes a page-builder widget category.
type Category struct {
	Title string
	Icon  string
}

// CategoryRegistry is the page builder's category collection. The builder
// passes it as the first argument of hooks.EventCategoriesRegistered.
type CategoryRegistry interface {
	AddCategory(id string, c Category) error
}

// UpdateSettings configures the update-checker bootstrap.
type UpdateSettings struct {
	Checker     *updater.Checker
	Package     updater.InstalledPackage
	ManifestURL string
	Interval    time.Duration
}

// Plugin is a single extension instance.
type Plugin struct {
	host     Host
	commerce Commerce
	update   *UpdateSettings
	now      func() time.Time

	mu     sync.Mutex
	active bool

	bootstrap sync.WaitGroup
	lastMu    sync.Mutex
	last      *updater.CheckResult
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithCommerce enables the cart-button text override.
func WithCommerce(c Commerce) Option {
	return func(p *Plugin) {
		p.commerce = c
	}
}

// WithUpdates enables the update-checker bootstrap. Without it the plugin
// never checks for updates.
func WithUpdates(s UpdateSettings) Option {
	return func(p *Plugin) {
		if s.Checker == nil {
			return
		}
		if s.Package.Identifier == "" {
			s.Package.Identifier = Slug
		}
		if s.Package.CurrentVersion == "" {
			s.Package.CurrentVersion = Version
		}
		if s.Interval <= 0 {
			s.Interval = updater.DefaultMinInterval
		}
		p.update = &s
	}
}

// WithClock overrides the time source used by the year shortcode.
func WithClock(now func() time.Time) Option {
	return func(p *Plugin) {
		p.now = now
	}
}

// New creates an inactive plugin bound to host.
func New(host Host, opts ...Option) *Plugin {
	p := &Plugin{
		host: host,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Activate registers the plugin's hooks. Calling it again is a no-op.
func (p *Plugin) Activate() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active {
		return nil
	}

	if err := p.host.AddShortcode(ShortcodeYear, p.currentYear); err != nil {
		return fmt.Errorf("registering [%s]: %w", ShortcodeYear, err)
	}
	p.host.AddAction(hooks.EventCategoriesRegistered, p.addWidgetCategory, hooks.DefaultPriority)

	if p.commerce != nil {
		p.commerce.AddFilter(FilterAddToCartText, addToCartText, hooks.DefaultPriority)
	}

	if p.update != nil {
		p.host.AddAction(hooks.EventPluginsLoaded, p.startUpdateCheck, hooks.DefaultPriority)
	} else {
		log.Debug("update checker not configured; updates disabled")
	}

	p.active = true
	return nil
}

// Active reports whether Activate has run.
func (p *Plugin) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Wait blocks until any update check started by the plugin has finished.
func (p *Plugin) Wait() {
	p.bootstrap.Wait()
}

// LastCheck returns the result of the most recent bootstrap check, or nil if
// none has completed.
func (p *Plugin) LastCheck() *updater.CheckResult {
	p.lastMu.Lock()
	defer p.lastMu.Unlock()
	if p.last == nil {
		return nil
	}
	res := *p.last
	return &res
}

func (p *Plugin) currentYear(map[string]string, string) string {
	return strconv.Itoa(p.now().Year())
}

func (p *Plugin) addWidgetCategory(_ context.Context, args ...any) error {
	if len(args) == 0 {
		return fmt.Errorf("%s: missing category registry", hooks.EventCategoriesRegistered)
	}
	registry, ok := args[0].(CategoryRegistry)
	if !ok {
		return fmt.Errorf("%s: unexpected argument %T", hooks.EventCategoriesRegistered, args[0])
	}
	return registry.AddCategory(CategoryID, Category{Title: CategoryTitle, Icon: CategoryIcon})
}

func addToCartText(string) string {
	return AddToCartText
}

// startUpdateCheck runs the first update check in the background so the host
// is never held up by the network.
func (p *Plugin) startUpdateCheck(ctx context.Context, _ ...any) error {
	u := p.update
	ctx = context.WithoutCancel(ctx)

	p.bootstrap.Add(1)
	go func() {
		defer p.bootstrap.Done()
		res := u.Checker.Bootstrap(ctx, u.Package, u.ManifestURL, u.Interval)
		p.lastMu.Lock()
		p.last = &res
		p.lastMu.Unlock()
	}()
	return nil
}
