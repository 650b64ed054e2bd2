package model

import "errors"

// ErrNotFound is returned when a requested event, participant, organizer
// entry or account does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEvent is returned when an event identifier is already registered.
var ErrDuplicateEvent = errors.New("event already exists")

// ErrDuplicateUser is returned when an account email is already registered.
var ErrDuplicateUser = errors.New("user already exists")

// ErrCapacityExceeded is returned when an event has no remaining capacity.
var ErrCapacityExceeded = errors.New("event is at full capacity")

// ErrAlreadyEnrolled is returned when the same participant enrolls twice.
var ErrAlreadyEnrolled = errors.New("participant already enrolled in this event")

// ErrInvalidEvent is returned when an event is constructed with bad fields.
var ErrInvalidEvent = errors.New("invalid event")

// ErrWrongKind is returned by variant-specific setters called on the other variant.
var ErrWrongKind = errors.New("operation not supported for this event kind")

// ErrInvalidUser is returned when an account is submitted with bad fields.
var ErrInvalidUser = errors.New("invalid user")
