// Package backup snapshots a persisted file before it is overwritten.
package backup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TimestampLayout is embedded in backup names. Nanoseconds keep repeated
// fast saves apart; a numeric suffix covers anything closer still.
const TimestampLayout = "20060102_150405.000000000"

// maxAttempts bounds the collision suffix search.
const maxAttempts = 1000

// Error reports a failed snapshot. It is not fatal: the write that follows
// goes ahead regardless.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("backup %s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Policy copies an existing file into Dir before it is overwritten.
type Policy struct {
	dir      string
	disabled bool
	now      func() time.Time
}

// Option configures a Policy.
type Option func(*Policy)

// WithClock overrides the clock used for backup names.
func WithClock(now func() time.Time) Option {
	return func(p *Policy) {
		if now != nil {
			p.now = now
		}
	}
}

// WithDisabled turns SnapshotIfExists into a no-op.
func WithDisabled(disabled bool) Option {
	return func(p *Policy) { p.disabled = disabled }
}

// New returns a Policy writing into dir.
func New(dir string, opts ...Option) *Policy {
	p := &Policy{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dir returns the backup directory.
func (p *Policy) Dir() string { return p.dir }

// Name builds the backup file name for source at t:
// "events.json" becomes "events_backup_<timestamp>.json".
func Name(source string, t time.Time) string {
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s_backup_%s%s", stem, t.Format(TimestampLayout), ext)
}

// SnapshotIfExists copies source into the backup directory and returns the
// backup path. It returns "" and no error when source does not exist or the
// policy is disabled.
func (p *Policy) SnapshotIfExists(source string) (string, error) {
	if p == nil || p.disabled {
		return "", nil
	}
	in, err := os.Open(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", &Error{Source: source, Err: err}
	}
	defer in.Close()

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", &Error{Source: source, Err: fmt.Errorf("create backup dir: %w", err)}
	}

	out, path, err := p.create(source)
	if err != nil {
		return "", &Error{Source: source, Err: err}
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(path)
		return "", &Error{Source: source, Err: fmt.Errorf("copy: %w", err)}
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(path)
		return "", &Error{Source: source, Err: fmt.Errorf("sync: %w", err)}
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", &Error{Source: source, Err: fmt.Errorf("close: %w", err)}
	}
	return path, nil
}

// create opens a fresh backup file, never reusing an existing name.
func (p *Policy) create(source string) (*os.File, string, error) {
	name := Name(source, p.now())
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := name
		if attempt > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, attempt, ext)
		}
		path := filepath.Join(p.dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("create backup file: %w", err)
		}
	}
	return nil, "", fmt.Errorf("no free backup name for %s", name)
}

// List returns the backups of source currently in the backup directory,
// oldest name first.
func (p *Policy) List(source string) ([]string, error) {
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	pattern := filepath.Join(p.dir, strings.TrimSuffix(base, ext)+"_backup_*"+ext)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	return matches, nil
}
