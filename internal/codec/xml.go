package codec

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/event-registry/internal/model"
	"github.com/Shivanand-hulikatti/event-registry/internal/registry"
)

// XML is the markup codec. Accounts are always written in their redacted
// form.
type XML struct {
	// Now stamps the exportDate attribute; nil means time.Now.
	Now func() time.Time
}

var _ Codec = XML{}

func (XML) Format() Format { return FormatXML }

func (c XML) exportDate() string {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return formatDate(now())
}

type xmlParticipant struct {
	ID    string `xml:"id,attr"`
	Name  string `xml:"nom"`
	Email string `xml:"email"`
}

type xmlParticipants struct {
	Items []xmlParticipant `xml:"participant"`
}

type xmlSpeaker struct {
	Name      string `xml:"nom"`
	Specialty string `xml:"specialite"`
}

type xmlSpeakers struct {
	Items []xmlSpeaker `xml:"intervenant"`
}

// Numeric and boolean fields are read as text so a bad value only
// invalidates its own record.
type xmlEvent struct {
	ID           string          `xml:"id,attr"`
	Type         string          `xml:"type,attr"`
	Name         string          `xml:"nom"`
	Date         string          `xml:"date"`
	Location     string          `xml:"lieu"`
	Capacity     string          `xml:"capaciteMax"`
	Participants xmlParticipants `xml:"participants"`
	Theme        string          `xml:"theme,omitempty"`
	Speakers     *xmlSpeakers    `xml:"intervenants,omitempty"`
	Artist       string          `xml:"artiste,omitempty"`
	Genre        string          `xml:"genreMusical,omitempty"`
}

type xmlEventsDoc struct {
	XMLName    xml.Name   `xml:"events"`
	ExportDate string     `xml:"exportDate,attr"`
	Count      int        `xml:"count,attr"`
	Events     []xmlEvent `xml:"event"`
}

type xmlUser struct {
	ID           string `xml:"id,attr"`
	Role         string `xml:"role,attr"`
	Name         string `xml:"nom"`
	Email        string `xml:"email"`
	Phone        string `xml:"telephone,omitempty"`
	Organization string `xml:"organisation,omitempty"`
	CreatedAt    string `xml:"dateCreation"`
	Active       string `xml:"actif"`
}

type xmlUsersDoc struct {
	XMLName    xml.Name  `xml:"utilisateurs"`
	ExportDate string    `xml:"exportDate,attr"`
	Count      int       `xml:"count,attr"`
	Users      []xmlUser `xml:"utilisateur"`
}

func toXMLEvent(v model.EventView) xmlEvent {
	rec := xmlEvent{
		ID:       v.ID,
		Type:     string(v.Kind),
		Name:     v.Name,
		Date:     formatDate(v.Date),
		Location: v.Location,
		Capacity: strconv.Itoa(v.Capacity),
	}
	for _, p := range v.Participants {
		rec.Participants.Items = append(rec.Participants.Items, xmlParticipant{ID: p.ID, Name: p.Name, Email: p.Email})
	}
	switch v.Kind {
	case model.KindConference:
		rec.Theme = v.Theme
		rec.Speakers = &xmlSpeakers{}
		for _, s := range v.Speakers {
			rec.Speakers.Items = append(rec.Speakers.Items, xmlSpeaker{Name: s.Name, Specialty: s.Specialty})
		}
	case model.KindConcert:
		rec.Artist = v.Artist
		rec.Genre = v.Genre
	}
	return rec
}

func encodeXML(w io.Writer, doc any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("write xml header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode xml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode xml: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// decodeXML reads the whole document into doc. ok is false for an empty
// stream.
func decodeXML(r io.Reader, doc any, op string) (bool, error) {
	if err := xml.NewDecoder(r).Decode(doc); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, &Error{Format: FormatXML, Op: op, Err: err}
	}
	return true, nil
}

// EncodeEvents writes an <events> document.
func (c XML) EncodeEvents(ctx context.Context, w io.Writer, events []model.EventView) error {
	doc := xmlEventsDoc{ExportDate: c.exportDate(), Count: len(events)}
	for _, v := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc.Events = append(doc.Events, toXMLEvent(v))
	}
	return encodeXML(w, doc)
}

// DecodeEvents reads an <events> document.
func (XML) DecodeEvents(ctx context.Context, r io.Reader) (*registry.Registry, Report, error) {
	var rep Report
	var doc xmlEventsDoc
	ok, err := decodeXML(r, &doc, "decode events")
	if err != nil {
		return nil, rep, err
	}
	reg := registry.New()
	if !ok {
		return reg, rep, nil
	}
	for _, x := range doc.Events {
		if err := ctx.Err(); err != nil {
			return nil, rep, err
		}
		capacity, err := strconv.Atoi(strings.TrimSpace(x.Capacity))
		if err != nil {
			rep.skip("event %s: invalid capaciteMax %q", x.ID, x.Capacity)
			continue
		}
		rec := eventRecord{
			ID:       x.ID,
			Type:     x.Type,
			Name:     x.Name,
			Date:     x.Date,
			Location: x.Location,
			Capacity: capacity,
			Theme:    x.Theme,
			Artist:   x.Artist,
			Genre:    x.Genre,
		}
		for _, p := range x.Participants.Items {
			rec.Participants = append(rec.Participants, model.Participant{ID: p.ID, Name: p.Name, Email: p.Email})
		}
		if x.Speakers != nil {
			for _, s := range x.Speakers.Items {
				rec.Speakers = append(rec.Speakers, model.Speaker{Name: s.Name, Specialty: s.Specialty})
			}
		}
		restoreEvent(reg, &rep, rec)
	}
	return reg, rep, nil
}

// EncodeUsers writes a <utilisateurs> document of redacted accounts.
func (c XML) EncodeUsers(ctx context.Context, w io.Writer, users []model.User) error {
	doc := xmlUsersDoc{ExportDate: c.exportDate(), Count: len(users)}
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := fromUser(u.Redacted())
		doc.Users = append(doc.Users, xmlUser{
			ID:           rec.ID,
			Role:         rec.Role,
			Name:         rec.Name,
			Email:        rec.Email,
			Phone:        rec.Phone,
			Organization: rec.Organization,
			CreatedAt:    rec.CreatedAt,
			Active:       strconv.FormatBool(rec.Active),
		})
	}
	return encodeXML(w, doc)
}

// DecodeUsers reads a <utilisateurs> document.
func (XML) DecodeUsers(ctx context.Context, r io.Reader) (*registry.Accounts, Report, error) {
	var rep Report
	var doc xmlUsersDoc
	ok, err := decodeXML(r, &doc, "decode users")
	if err != nil {
		return nil, rep, err
	}
	accounts := registry.NewAccounts()
	if !ok {
		return accounts, rep, nil
	}
	for _, x := range doc.Users {
		if err := ctx.Err(); err != nil {
			return nil, rep, err
		}
		active, err := strconv.ParseBool(strings.TrimSpace(x.Active))
		if err != nil {
			rep.skip("user %s: invalid actif %q", x.Email, x.Active)
			continue
		}
		restoreUser(accounts, &rep, userRecord{
			ID:           x.ID,
			Name:         x.Name,
			Email:        x.Email,
			Role:         x.Role,
			Phone:        x.Phone,
			Organization: x.Organization,
			CreatedAt:    x.CreatedAt,
			Active:       active,
		})
	}
	return accounts, rep, nil
}
