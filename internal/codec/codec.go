// Package codec encodes and decodes the event registry and the account
// directory in two independent on-disk formats: a JSON structured-record
// format and an XML markup format.
//
// Decoding is tolerant per record. A record with an unknown type tag or bad
// field values is skipped and counted in the Report; only a stream that is
// not valid in the expected format at all fails the call. Participants are
// restored through model.Event.Enroll, so a persisted list longer than the
// event's capacity is clamped and the dropped participants are counted.
package codec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Shivanand-hulikatti/event-registry/internal/model"
	"github.com/Shivanand-hulikatti/event-registry/internal/registry"
)

// Format names an encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
)

// ParseFormat validates a configured format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatXML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown storage format %q", s)
	}
}

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string { return "." + string(f) }

// ErrMalformed marks a stream that is not readable in the expected format.
var ErrMalformed = errors.New("malformed stream")

// Error is the single top-level failure of a decode call.
type Error struct {
	Format Format
	Op     string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v: %v", e.Format, e.Op, ErrMalformed, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrMalformed) match any codec Error.
func (e *Error) Is(target error) bool { return target == ErrMalformed }

// Report summarises a decode call.
type Report struct {
	Decoded             int      `json:"decoded"`
	Skipped             int      `json:"skipped"`
	DroppedParticipants int      `json:"dropped_participants"`
	Issues              []string `json:"issues,omitempty"`
}

func (r *Report) skip(format string, args ...any) {
	r.Skipped++
	r.Issues = append(r.Issues, fmt.Sprintf(format, args...))
}

// Clean reports whether every record decoded without loss.
func (r Report) Clean() bool {
	return r.Skipped == 0 && r.DroppedParticipants == 0
}

// Codec is a paired encoder/decoder for one format.
type Codec interface {
	Format() Format
	EncodeEvents(ctx context.Context, w io.Writer, events []model.EventView) error
	DecodeEvents(ctx context.Context, r io.Reader) (*registry.Registry, Report, error)
	EncodeUsers(ctx context.Context, w io.Writer, users []model.User) error
	DecodeUsers(ctx context.Context, r io.Reader) (*registry.Accounts, Report, error)
}

// ForFormat returns the codec for f.
func ForFormat(f Format) (Codec, error) {
	switch f {
	case FormatJSON:
		return JSON{}, nil
	case FormatXML:
		return XML{}, nil
	default:
		return nil, fmt.Errorf("unknown storage format %q", f)
	}
}
