// Package hooks is the registration surface a host exposes to extensions:
// named actions fired at lifecycle points, filters that rewrite a value, and
// shortcodes expanded inside content.
//
// Callbacks run in ascending priority order. Callbacks sharing a priority run
// in registration order.
package hooks

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

// DefaultPriority is the priority used by most registrations.
const DefaultPriority = 10

// Well-known events.
const (
	// EventPluginsLoaded fires once every extension has been constructed.
	EventPluginsLoaded = "plugins_loaded"
	// EventCategoriesRegistered fires when the page builder collects its
	// widget categories. The builder's CategoryRegistry is passed as the
	// first argument.
	EventCategoriesRegistered = "elementor/elements/categories_registered"
)

// ActionFunc is called when an action fires.
type ActionFunc func(ctx context.Context, args ...any) error

// FilterFunc receives the current value and returns the replacement.
type FilterFunc func(value string) string

// ShortcodeFunc renders a shortcode. content is empty for self-closing tags.
type ShortcodeFunc func(attrs map[string]string, content string) string

var tagPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type registered[T any] struct {
	fn       T
	priority int
	seq      int
}

// Registry holds actions, filters and shortcodes. The zero value is not
// usable; create one with NewRegistry.
type Registry struct {
	mu         sync.RWMutex
	seq        int
	actions    map[string][]registered[ActionFunc]
	filters    map[string][]registered[FilterFunc]
	shortcodes map[string]ShortcodeFunc
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		actions:    make(map[string][]registered[ActionFunc]),
		filters:    make(map[string][]registered[FilterFunc]),
		shortcodes: make(map[string]ShortcodeFunc),
	}
}

// AddAction registers fn for event.
func (r *Registry) AddAction(event string, fn ActionFunc, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.actions[event] = insertSorted(r.actions[event], registered[ActionFunc]{fn: fn, priority: priority, seq: r.seq})
}

// HasAction reports whether any callback is registered for event.
func (r *Registry) HasAction(event string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actions[event]) > 0
}

// DoAction fires event. Every callback runs even if an earlier one fails;
// the failures are returned together.
func (r *Registry) DoAction(ctx context.Context, event string, args ...any) error {
	r.mu.RLock()
	callbacks := append([]registered[ActionFunc](nil), r.actions[event]...)
	r.mu.RUnlock()

	log.Tracef("firing action %s (%d callbacks)", event, len(callbacks))

	var result *multierror.Error
	for _, cb := range callbacks {
		if err := ctx.Err(); err != nil {
			return multierror.Append(result, err).ErrorOrNil()
		}
		if err := cb.fn(ctx, args...); err != nil {
			result = multierror.Append(result, fmt.Errorf("action %s: %w", event, err))
		}
	}
	return result.ErrorOrNil()
}

// AddFilter registers fn for the filter name.
func (r *Registry) AddFilter(name string, fn FilterFunc, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.filters[name] = insertSorted(r.filters[name], registered[FilterFunc]{fn: fn, priority: priority, seq: r.seq})
}

// HasFilter reports whether any callback is registered for name.
func (r *Registry) HasFilter(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.filters[name]) > 0
}

// ApplyFilters passes value through every filter registered for name.
func (r *Registry) ApplyFilters(name, value string) string {
	r.mu.RLock()
	callbacks := append([]registered[FilterFunc](nil), r.filters[name]...)
	r.mu.RUnlock()

	for _, cb := range callbacks {
		value = cb.fn(value)
	}
	return value
}

// AddShortcode registers fn under tag, replacing any previous handler.
func (r *Registry) AddShortcode(tag string, fn ShortcodeFunc) error {
	if !tagPattern.MatchString(tag) {
		return fmt.Errorf("invalid shortcode tag %q", tag)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shortcodes[tag] = fn
	return nil
}

// ShortcodeExists reports whether tag has a handler.
func (r *Registry) ShortcodeExists(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.shortcodes[tag]
	return ok
}

func (r *Registry) shortcode(tag string) (ShortcodeFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.shortcodes[tag]
	return fn, ok
}

func insertSorted[T any](list []registered[T], item registered[T]) []registered[T] {
	list = append(list, item)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority < list[j].priority
		}
		return list[i].seq < list[j].seq
	})
	return list
}
