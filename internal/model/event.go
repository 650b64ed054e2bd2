// Package model defines the core domain types for the event registry: the
// Conference/Concert event union, participants, organizers and accounts.
package model

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Shivanand-hulikatti/event-registry/internal/notify"
)

// Kind tags the event variant.
type Kind string

const (
	KindConference Kind = "CONFERENCE"
	KindConcert    Kind = "CONCERT"
)

// ParseKind maps a persisted type tag to a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case KindConference:
		return KindConference, nil
	case KindConcert:
		return KindConcert, nil
	default:
		return "", fmt.Errorf("%w: unknown event type %q", ErrInvalidEvent, s)
	}
}

// EventInfo holds the fields shared by every event kind.
type EventInfo struct {
	ID       string
	Name     string
	Date     time.Time
	Location string
	Capacity int
}

// ConferenceDetails is the Conference payload.
type ConferenceDetails struct {
	Theme    string
	Speakers []Speaker
}

// ConcertDetails is the Concert payload.
type ConcertDetails struct {
	Artist string
	Genre  string
}

// Event is a scheduled Conference or Concert with capacity-bounded
// enrollment. It owns its participant list and observer set.
//
// All methods are safe for concurrent use. Notifications are delivered after
// the event's lock is released.
type Event struct {
	mu           sync.RWMutex
	info         EventInfo
	kind         Kind
	conference   ConferenceDetails
	concert      ConcertDetails
	participants []Participant

	observers notify.Set
}

// NewConference builds a Conference event.
func NewConference(info EventInfo, theme string, speakers []Speaker) (*Event, error) {
	if err := validateInfo(info); err != nil {
		return nil, err
	}
	if err := validText("theme", theme); err != nil {
		return nil, err
	}
	for _, sp := range speakers {
		if err := validSpeaker(sp); err != nil {
			return nil, err
		}
	}
	return &Event{
		info: normalizeInfo(info),
		kind: KindConference,
		conference: ConferenceDetails{
			Theme:    theme,
			Speakers: append([]Speaker(nil), speakers...),
		},
	}, nil
}

// NewConcert builds a Concert event.
func NewConcert(info EventInfo, artist, genre string) (*Event, error) {
	if err := validateInfo(info); err != nil {
		return nil, err
	}
	if err := validText("artist", artist); err != nil {
		return nil, err
	}
	if err := validText("genre", genre); err != nil {
		return nil, err
	}
	return &Event{
		info:    normalizeInfo(info),
		kind:    KindConcert,
		concert: ConcertDetails{Artist: artist, Genre: genre},
	}, nil
}

func validateInfo(info EventInfo) error {
	if strings.TrimSpace(info.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidEvent)
	}
	if strings.TrimSpace(info.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidEvent)
	}
	if info.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be a positive integer", ErrInvalidEvent)
	}
	if err := validText("id", info.ID); err != nil {
		return err
	}
	if err := validText("name", info.Name); err != nil {
		return err
	}
	if err := validText("location", info.Location); err != nil {
		return err
	}
	return validDate(info.Date)
}

// MaxYear is the last year a persisted date can carry.
const MaxYear = 9999

func validDate(d time.Time) error {
	if y := d.Year(); y < 0 || y > MaxYear {
		return fmt.Errorf("%w: date year %d outside 0-%d", ErrInvalidEvent, y, MaxYear)
	}
	return nil
}

// ValidText reports whether s is valid UTF-8 made only of characters an
// XML document can carry.
func ValidText(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		switch {
		case r == '\t', r == '\n', r == '\r':
		case r < 0x20, r == 0xFFFE, r == 0xFFFF:
			return false
		}
	}
	return true
}

func validText(field, s string) error {
	if !ValidText(s) {
		return fmt.Errorf("%w: %s contains invalid characters", ErrInvalidEvent, field)
	}
	return nil
}

func validSpeaker(sp Speaker) error {
	if err := validText("speaker name", sp.Name); err != nil {
		return err
	}
	return validText("speaker specialty", sp.Specialty)
}

// Dates are kept at second precision so persisted copies compare equal.
func normalizeInfo(info EventInfo) EventInfo {
	info.Date = info.Date.Truncate(time.Second)
	return info
}

// ID returns the immutable event identifier.
func (e *Event) ID() string { return e.info.ID }

// Kind returns the variant tag.
func (e *Event) Kind() Kind { return e.kind }

func (e *Event) Name() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.info.Name
}

func (e *Event) Date() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.info.Date
}

func (e *Event) Location() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.info.Location
}

func (e *Event) Capacity() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.info.Capacity
}

// Participants returns a copy of the enrolled participants in enrollment order.
func (e *Event) Participants() []Participant {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Participant(nil), e.participants...)
}

// Enrolled returns the number of enrolled participants.
func (e *Event) Enrolled() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.participants)
}

// Remaining returns the number of available seats.
func (e *Event) Remaining() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.info.Capacity - len(e.participants)
}

// IsFull returns true when no seats remain.
func (e *Event) IsFull() bool {
	return e.Remaining() <= 0
}

// IsEnrolled reports whether a participant with the given ID is enrolled.
func (e *Event) IsEnrolled(participantID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.indexOf(participantID) >= 0
}

func (e *Event) indexOf(participantID string) int {
	for i, p := range e.participants {
		if p.ID == participantID {
			return i
		}
	}
	return -1
}

// Enroll adds p to the event and notifies observers.
// Capacity is checked before membership.
func (e *Event) Enroll(p Participant) error {
	if !ValidText(p.ID) || !ValidText(p.Name) || !ValidText(p.Email) {
		return fmt.Errorf("enroll in %s: %w: participant contains invalid characters", e.info.ID, ErrInvalidEvent)
	}
	e.mu.Lock()
	if len(e.participants) >= e.info.Capacity {
		e.mu.Unlock()
		return fmt.Errorf("enroll %s in %s: %w", p.ID, e.info.ID, ErrCapacityExceeded)
	}
	if e.indexOf(p.ID) >= 0 {
		e.mu.Unlock()
		return fmt.Errorf("enroll %s in %s: %w", p.ID, e.info.ID, ErrAlreadyEnrolled)
	}
	e.participants = append(e.participants, p)
	msg := fmt.Sprintf("Participant %s added to %q", displayName(p), e.info.Name)
	e.mu.Unlock()

	_ = e.observers.Broadcast(msg)
	return nil
}

// Withdraw removes the participant with p's ID and notifies observers.
func (e *Event) Withdraw(p Participant) error {
	e.mu.Lock()
	i := e.indexOf(p.ID)
	if i < 0 {
		e.mu.Unlock()
		return fmt.Errorf("withdraw %s from %s: %w", p.ID, e.info.ID, ErrNotFound)
	}
	removed := e.participants[i]
	e.participants = append(e.participants[:i:i], e.participants[i+1:]...)
	msg := fmt.Sprintf("Participant %s removed from %q", displayName(removed), e.info.Name)
	e.mu.Unlock()

	_ = e.observers.Broadcast(msg)
	return nil
}

// Cancel notifies observers that the event is cancelled. It does not remove
// the event from any registry or organizer.
func (e *Event) Cancel() {
	e.mu.RLock()
	var detail string
	switch e.kind {
	case KindConference:
		detail = "theme: " + e.conference.Theme
	case KindConcert:
		detail = "artist: " + e.concert.Artist
	}
	msg := fmt.Sprintf("Event %q cancelled (%s)", e.info.Name, detail)
	e.mu.RUnlock()

	_ = e.observers.Broadcast(msg)
}

func displayName(p Participant) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// AddObserver attaches o to this event.
func (e *Event) AddObserver(o notify.Observer) { e.observers.Add(o) }

// RemoveObserver detaches o. Unknown observers are ignored.
func (e *Event) RemoveObserver(o notify.Observer) { e.observers.Remove(o) }

// ObserverCount returns the number of attached observers.
func (e *Event) ObserverCount() int { return e.observers.Len() }

// OnDeliveryFailure installs the callback that receives observer failures.
func (e *Event) OnDeliveryFailure(fn func(error)) { e.observers.SetFailureHandler(fn) }

func (e *Event) SetName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidEvent)
	}
	if err := validText("name", name); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.info.Name = name
	return nil
}

func (e *Event) SetDate(d time.Time) error {
	if err := validDate(d); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.info.Date = d.Truncate(time.Second)
	return nil
}

func (e *Event) SetLocation(location string) error {
	if err := validText("location", location); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.info.Location = location
	return nil
}

// SetCapacity changes the capacity. It cannot drop below the current
// enrollment count.
func (e *Event) SetCapacity(capacity int) error {
	if capacity <= 0 {
		return fmt.Errorf("%w: capacity must be a positive integer", ErrInvalidEvent)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if capacity < len(e.participants) {
		return fmt.Errorf("capacity %d below %d enrolled: %w", capacity, len(e.participants), ErrCapacityExceeded)
	}
	e.info.Capacity = capacity
	return nil
}

func (e *Event) SetTheme(theme string) error {
	if e.kind != KindConference {
		return fmt.Errorf("set theme on %s: %w", e.kind, ErrWrongKind)
	}
	if err := validText("theme", theme); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conference.Theme = theme
	return nil
}

func (e *Event) AddSpeaker(s Speaker) error {
	if e.kind != KindConference {
		return fmt.Errorf("add speaker on %s: %w", e.kind, ErrWrongKind)
	}
	if err := validSpeaker(s); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conference.Speakers = append(e.conference.Speakers, s)
	return nil
}

func (e *Event) SetArtist(artist string) error {
	if e.kind != KindConcert {
		return fmt.Errorf("set artist on %s: %w", e.kind, ErrWrongKind)
	}
	if err := validText("artist", artist); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.concert.Artist = artist
	return nil
}

func (e *Event) SetGenre(genre string) error {
	if e.kind != KindConcert {
		return fmt.Errorf("set genre on %s: %w", e.kind, ErrWrongKind)
	}
	if err := validText("genre", genre); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.concert.Genre = genre
	return nil
}

// EventView is an immutable copy of an event's state.
// Theme and Speakers are set for conferences; Artist and Genre for concerts.
type EventView struct {
	ID           string        `json:"id"`
	Kind         Kind          `json:"type"`
	Name         string        `json:"name"`
	Date         time.Time     `json:"date"`
	Location     string        `json:"location"`
	Capacity     int           `json:"capacity"`
	Participants []Participant `json:"participants"`
	Theme        string        `json:"theme,omitempty"`
	Speakers     []Speaker     `json:"speakers,omitempty"`
	Artist       string        `json:"artist,omitempty"`
	Genre        string        `json:"genre,omitempty"`
}

// View returns a consistent copy of the event.
func (e *Event) View() EventView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v := EventView{
		ID:           e.info.ID,
		Kind:         e.kind,
		Name:         e.info.Name,
		Date:         e.info.Date,
		Location:     e.info.Location,
		Capacity:     e.info.Capacity,
		Participants: append([]Participant{}, e.participants...),
	}
	switch e.kind {
	case KindConference:
		v.Theme = e.conference.Theme
		v.Speakers = append([]Speaker{}, e.conference.Speakers...)
	case KindConcert:
		v.Artist = e.concert.Artist
		v.Genre = e.concert.Genre
	}
	return v
}

// Info returns the shared fields of a view.
func (v EventView) Info() EventInfo {
	return EventInfo{ID: v.ID, Name: v.Name, Date: v.Date, Location: v.Location, Capacity: v.Capacity}
}

// DescribeDateLayout is the date format used by Describe.
const DescribeDateLayout = "2006-01-02 15:04"

// Describe renders a deterministic multi-line summary of the event.
func (e *Event) Describe() string {
	return e.View().Describe()
}

// Describe renders a deterministic multi-line summary of the view.
func (v EventView) Describe() string {
	var b strings.Builder
	switch v.Kind {
	case KindConference:
		fmt.Fprintf(&b, "Conference: %s\n", v.Name)
	case KindConcert:
		fmt.Fprintf(&b, "Concert: %s\n", v.Name)
	}
	fmt.Fprintf(&b, "ID: %s\n", v.ID)
	fmt.Fprintf(&b, "Date: %s\n", v.Date.Format(DescribeDateLayout))
	fmt.Fprintf(&b, "Location: %s\n", v.Location)
	fmt.Fprintf(&b, "Participants: %d/%d\n", len(v.Participants), v.Capacity)
	switch v.Kind {
	case KindConference:
		fmt.Fprintf(&b, "Theme: %s\n", v.Theme)
		if len(v.Speakers) == 0 {
			b.WriteString("Speakers: none\n")
		} else {
			b.WriteString("Speakers:\n")
			for _, s := range v.Speakers {
				fmt.Fprintf(&b, "  - %s (%s)\n", s.Name, s.Specialty)
			}
		}
	case KindConcert:
		fmt.Fprintf(&b, "Artist: %s\n", v.Artist)
		fmt.Fprintf(&b, "Genre: %s\n", v.Genre)
	}
	return b.String()
}
