package codec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/Shivanand-hulikatti/event-registry/internal/model"
	"github.com/Shivanand-hulikatti/event-registry/internal/registry"
)

// JSON is the structured-record codec: one object keyed by event id (or by
// email for accounts). Keys are written in registry order and read back in
// file order.
type JSON struct{}

var _ Codec = JSON{}

func (JSON) Format() Format { return FormatJSON }

type jsonParticipant struct {
	ID    string `json:"id"`
	Name  string `json:"nom"`
	Email string `json:"email"`
}

type jsonSpeaker struct {
	Name      string `json:"nom"`
	Specialty string `json:"specialite"`
}

type jsonEvent struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	Name         string            `json:"nom"`
	Date         string            `json:"date"`
	Location     string            `json:"lieu"`
	Capacity     int               `json:"capaciteMax"`
	Participants []jsonParticipant `json:"participants"`
	Theme        string            `json:"theme,omitempty"`
	Speakers     []jsonSpeaker     `json:"intervenants,omitempty"`
	Artist       string            `json:"artiste,omitempty"`
	Genre        string            `json:"genreMusical,omitempty"`
}

type jsonUser struct {
	ID           string `json:"id"`
	Name         string `json:"nom"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	Phone        string `json:"telephone,omitempty"`
	Organization string `json:"organisation,omitempty"`
	CreatedAt    string `json:"dateCreation"`
	Active       bool   `json:"actif"`
	PasswordHash string `json:"motDePasseHash,omitempty"`
}

func toJSONEvent(v model.EventView) jsonEvent {
	rec := jsonEvent{
		ID:           v.ID,
		Type:         string(v.Kind),
		Name:         v.Name,
		Date:         formatDate(v.Date),
		Location:     v.Location,
		Capacity:     v.Capacity,
		Participants: make([]jsonParticipant, 0, len(v.Participants)),
	}
	for _, p := range v.Participants {
		rec.Participants = append(rec.Participants, jsonParticipant{ID: p.ID, Name: p.Name, Email: p.Email})
	}
	switch v.Kind {
	case model.KindConference:
		rec.Theme = v.Theme
		for _, s := range v.Speakers {
			rec.Speakers = append(rec.Speakers, jsonSpeaker{Name: s.Name, Specialty: s.Specialty})
		}
	case model.KindConcert:
		rec.Artist = v.Artist
		rec.Genre = v.Genre
	}
	return rec
}

func (rec jsonEvent) record() eventRecord {
	out := eventRecord{
		ID:       rec.ID,
		Type:     rec.Type,
		Name:     rec.Name,
		Date:     rec.Date,
		Location: rec.Location,
		Capacity: rec.Capacity,
		Theme:    rec.Theme,
		Artist:   rec.Artist,
		Genre:    rec.Genre,
	}
	for _, p := range rec.Participants {
		out.Participants = append(out.Participants, model.Participant{ID: p.ID, Name: p.Name, Email: p.Email})
	}
	for _, s := range rec.Speakers {
		out.Speakers = append(out.Speakers, model.Speaker{Name: s.Name, Specialty: s.Specialty})
	}
	return out
}

// writeOrderedObject writes {"key": value, ...} preserving the given order
// and pretty-prints the result.
func writeOrderedObject(ctx context.Context, w io.Writer, n int, entry func(i int) (string, any)) error {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		key, value := entry(i)
		k, err := json.Marshal(key)
		if err != nil {
			return fmt.Errorf("marshal key %q: %w", key, err)
		}
		v, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal record %q: %w", key, err)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	if _, err := w.Write(pretty.Pretty(buf.Bytes())); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// EncodeEvents writes events as an object keyed by event id.
func (JSON) EncodeEvents(ctx context.Context, w io.Writer, events []model.EventView) error {
	return writeOrderedObject(ctx, w, len(events), func(i int) (string, any) {
		return events[i].ID, toJSONEvent(events[i])
	})
}

// readObject validates the stream and returns the root object, or ok=false
// for an empty stream.
func readObject(r io.Reader, op string) (gjson.Result, bool, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return gjson.Result{}, false, fmt.Errorf("read json: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return gjson.Result{}, false, nil
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, false, &Error{Format: FormatJSON, Op: op, Err: fmt.Errorf("invalid json")}
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return gjson.Result{}, false, &Error{Format: FormatJSON, Op: op, Err: fmt.Errorf("top level is %s, want object", root.Type)}
	}
	return root, true, nil
}

// DecodeEvents reads an object keyed by event id.
func (JSON) DecodeEvents(ctx context.Context, r io.Reader) (*registry.Registry, Report, error) {
	var rep Report
	reg := registry.New()
	root, ok, err := readObject(r, "decode events")
	if err != nil || !ok {
		if err != nil {
			return nil, rep, err
		}
		return reg, rep, nil
	}

	var ctxErr error
	root.ForEach(func(key, value gjson.Result) bool {
		if ctxErr = ctx.Err(); ctxErr != nil {
			return false
		}
		if !value.IsObject() {
			rep.skip("event %s: record is not an object", key.String())
			return true
		}
		if _, err := model.ParseKind(value.Get("type").String()); err != nil {
			rep.skip("event %s: unknown type %q", key.String(), value.Get("type").String())
			return true
		}
		var rec jsonEvent
		if err := json.Unmarshal([]byte(value.Raw), &rec); err != nil {
			rep.skip("event %s: %v", key.String(), err)
			return true
		}
		if rec.ID == "" {
			rec.ID = key.String()
		}
		restoreEvent(reg, &rep, rec.record())
		return true
	})
	if ctxErr != nil {
		return nil, rep, ctxErr
	}
	return reg, rep, nil
}

// EncodeUsers writes accounts as an object keyed by email.
func (JSON) EncodeUsers(ctx context.Context, w io.Writer, users []model.User) error {
	return writeOrderedObject(ctx, w, len(users), func(i int) (string, any) {
		rec := fromUser(users[i])
		return rec.Email, jsonUser(rec)
	})
}

// DecodeUsers reads an object keyed by email.
func (JSON) DecodeUsers(ctx context.Context, r io.Reader) (*registry.Accounts, Report, error) {
	var rep Report
	accounts := registry.NewAccounts()
	root, ok, err := readObject(r, "decode users")
	if err != nil || !ok {
		if err != nil {
			return nil, rep, err
		}
		return accounts, rep, nil
	}

	var ctxErr error
	root.ForEach(func(key, value gjson.Result) bool {
		if ctxErr = ctx.Err(); ctxErr != nil {
			return false
		}
		var rec jsonUser
		if err := json.Unmarshal([]byte(value.Raw), &rec); err != nil {
			rep.skip("user %s: %v", key.String(), err)
			return true
		}
		if rec.Email == "" {
			rec.Email = key.String()
		}
		restoreUser(accounts, &rep, userRecord(rec))
		return true
	})
	if ctxErr != nil {
		return nil, rep, ctxErr
	}
	return accounts, rep, nil
}
