package model

import (
	"fmt"
	"sync"
)

// Participant is an identity that can be enrolled in any number of events.
// Identity is the ID; name and email are display data.
type Participant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SameAs reports whether p and other denote the same participant.
func (p Participant) SameAs(other Participant) bool {
	return p.ID == other.ID
}

// Speaker is a conference speaker.
type Speaker struct {
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

// Organizer owns a curated list of the events it created.
//
// The list is not the authoritative registry: removing an event from the
// registry leaves it here, and removing it here leaves the registry alone.
// Callers update both.
type Organizer struct {
	ID    string
	Name  string
	Email string

	mu     sync.RWMutex
	events []*Event
}

// NewOrganizer constructs an Organizer with an empty event list.
func NewOrganizer(id, name, email string) *Organizer {
	return &Organizer{ID: id, Name: name, Email: email}
}

// AddEvent appends e to the organizer's list unless an event with the same
// ID is already there.
func (o *Organizer) AddEvent(e *Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, cur := range o.events {
		if cur.ID() == e.ID() {
			return
		}
	}
	o.events = append(o.events, e)
}

// RemoveEvent drops the event with the given ID from the organizer's list.
func (o *Organizer) RemoveEvent(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, cur := range o.events {
		if cur.ID() == id {
			o.events = append(o.events[:i:i], o.events[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("organizer %s event %s: %w", o.ID, id, ErrNotFound)
}

// HasEvent reports whether the organizer lists an event with the given ID.
func (o *Organizer) HasEvent(id string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, cur := range o.events {
		if cur.ID() == id {
			return true
		}
	}
	return false
}

// Events returns a copy of the organizer's list in insertion order.
func (o *Organizer) Events() []*Event {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]*Event(nil), o.events...)
}
