// Package registry holds the authoritative in-memory collections: events
// keyed by identifier and accounts keyed by email.
//
// A Registry is constructed explicitly and handed to whoever needs it; the
// application's entry point owns the process-wide instance.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"

	"github.com/Shivanand-hulikatti/event-registry/internal/model"
)

// Registry maps event identifiers to events. Iteration order is insertion
// order, which keeps query results stable within a process.
type Registry struct {
	mu     sync.RWMutex
	events map[string]*model.Event
	order  []string
	now    func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the clock used by FutureEvents.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New constructs an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		events: make(map[string]*model.Event),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add inserts e. It fails with model.ErrDuplicateEvent when the identifier
// is taken and leaves the registry unchanged. Add never notifies observers.
func (r *Registry) Add(e *model.Event) error {
	if e == nil {
		return fmt.Errorf("add event: %w", model.ErrInvalidEvent)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[e.ID()]; ok {
		return fmt.Errorf("add event %s: %w", e.ID(), model.ErrDuplicateEvent)
	}
	r.events[e.ID()] = e
	r.order = append(r.order, e.ID())
	return nil
}

// Remove deletes the event with the given identifier. It fails with
// model.ErrNotFound when absent. Organizer lists are not touched.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[id]; !ok {
		return fmt.Errorf("remove event %s: %w", id, model.ErrNotFound)
	}
	delete(r.events, id)
	for i, cur := range r.order {
		if cur == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Find returns the event with the given identifier.
func (r *Registry) Find(id string) (*model.Event, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.events[id]
	return e, ok
}

// All returns every event in insertion order.
func (r *Registry) All() []*model.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Event, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.events[id])
	}
	return out
}

// Views returns a snapshot of every event in insertion order.
func (r *Registry) Views() []model.EventView {
	events := r.All()
	views := make([]model.EventView, 0, len(events))
	for _, e := range events {
		views = append(views, e.View())
	}
	return views
}

// FindByLocation returns events whose location contains substr, compared
// with Unicode case folding. Results keep insertion order.
func (r *Registry) FindByLocation(substr string) []*model.Event {
	fold := cases.Fold()
	needle := fold.String(substr)
	var out []*model.Event
	for _, e := range r.All() {
		if strings.Contains(fold.String(e.Location()), needle) {
			out = append(out, e)
		}
	}
	return out
}

// FutureEvents returns events dated strictly after now, ascending by date
// with ties broken by identifier.
func (r *Registry) FutureEvents() []*model.Event {
	now := r.now()
	type dated struct {
		event *model.Event
		date  time.Time
	}
	var upcoming []dated
	for _, e := range r.All() {
		if d := e.Date(); d.After(now) {
			upcoming = append(upcoming, dated{event: e, date: d})
		}
	}
	sort.Slice(upcoming, func(i, j int) bool {
		if !upcoming[i].date.Equal(upcoming[j].date) {
			return upcoming[i].date.Before(upcoming[j].date)
		}
		return upcoming[i].event.ID() < upcoming[j].event.ID()
	})
	out := make([]*model.Event, len(upcoming))
	for i, d := range upcoming {
		out[i] = d.event
	}
	return out
}

// Size returns the number of registered events.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

// Clear removes every event.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = make(map[string]*model.Event)
	r.order = nil
}

// ReplaceWith swaps this registry's contents for other's in one step.
// other must not be used afterwards.
func (r *Registry) ReplaceWith(other *Registry) {
	other.mu.RLock()
	events := make(map[string]*model.Event, len(other.events))
	for id, e := range other.events {
		events[id] = e
	}
	order := append([]string(nil), other.order...)
	other.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = events
	r.order = order
}
