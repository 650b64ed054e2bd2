package model

import "time"

// CreateEventRequest is the payload for creating a new event.
// Type selects the variant; Theme/Speakers or Artist/Genre fill its payload.
type CreateEventRequest struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Name     string    `json:"name"`
	Date     time.Time `json:"date"`
	Location string    `json:"location"`
	Capacity int       `json:"capacity"`
	Theme    string    `json:"theme,omitempty"`
	Speakers []Speaker `json:"speakers,omitempty"`
	Artist   string    `json:"artist,omitempty"`
	Genre    string    `json:"genre,omitempty"`
}

// Build constructs the requested event variant.
func (r CreateEventRequest) Build() (*Event, error) {
	kind, err := ParseKind(r.Type)
	if err != nil {
		return nil, err
	}
	info := EventInfo{ID: r.ID, Name: r.Name, Date: r.Date, Location: r.Location, Capacity: r.Capacity}
	if kind == KindConference {
		return NewConference(info, r.Theme, r.Speakers)
	}
	return NewConcert(info, r.Artist, r.Genre)
}

// EnrollRequest is the payload for enrolling a participant in an event.
type EnrollRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// BookingResult summarises the outcome of a single enrollment attempt.
// Used in the concurrent test harness.
type BookingResult struct {
	ParticipantID string
	Success       bool
	Error         error
}
