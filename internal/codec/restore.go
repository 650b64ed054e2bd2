package codec

import (
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/event-registry/internal/model"
	"github.com/Shivanand-hulikatti/event-registry/internal/registry"
)

// localDateLayout is accepted on decode for files written without a zone.
const localDateLayout = "2006-01-02T15:04:05"

func formatDate(t time.Time) string {
	return t.Format(time.RFC3339)
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(localDateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

// eventRecord is the format-neutral shape both codecs decode into.
type eventRecord struct {
	ID           string
	Type         string
	Name         string
	Date         string
	Location     string
	Capacity     int
	Participants []model.Participant
	Theme        string
	Speakers     []model.Speaker
	Artist       string
	Genre        string
}

// restoreEvent rebuilds one event into reg, recording skips and dropped
// participants in rep.
func restoreEvent(reg *registry.Registry, rep *Report, rec eventRecord) {
	kind, err := model.ParseKind(rec.Type)
	if err != nil {
		rep.skip("event %s: unknown type %q", rec.ID, rec.Type)
		return
	}
	date, err := parseDate(rec.Date)
	if err != nil {
		rep.skip("event %s: %v", rec.ID, err)
		return
	}
	info := model.EventInfo{
		ID:       rec.ID,
		Name:     rec.Name,
		Date:     date,
		Location: rec.Location,
		Capacity: rec.Capacity,
	}
	var e *model.Event
	if kind == model.KindConference {
		e, err = model.NewConference(info, rec.Theme, rec.Speakers)
	} else {
		e, err = model.NewConcert(info, rec.Artist, rec.Genre)
	}
	if err != nil {
		rep.skip("event %s: %v", rec.ID, err)
		return
	}
	for _, p := range rec.Participants {
		if err := e.Enroll(p); err != nil {
			rep.DroppedParticipants++
			rep.Issues = append(rep.Issues, fmt.Sprintf("event %s: participant %s dropped: %v", rec.ID, p.ID, err))
		}
	}
	if err := reg.Add(e); err != nil {
		rep.skip("event %s: %v", rec.ID, err)
		return
	}
	rep.Decoded++
}

// userRecord is the format-neutral account shape.
type userRecord struct {
	ID           string
	Name         string
	Email        string
	Role         string
	Phone        string
	Organization string
	CreatedAt    string
	Active       bool
	PasswordHash string
}

func fromUser(u model.User) userRecord {
	return userRecord{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         string(u.Role),
		Phone:        u.Phone,
		Organization: u.Organization,
		CreatedAt:    formatDate(u.CreatedAt),
		Active:       u.Active,
		PasswordHash: u.PasswordHash,
	}
}

func restoreUser(accounts *registry.Accounts, rep *Report, rec userRecord) {
	role, err := model.ParseRole(rec.Role)
	if err != nil {
		rep.skip("user %s: %v", rec.Email, err)
		return
	}
	var created time.Time
	if strings.TrimSpace(rec.CreatedAt) != "" {
		if created, err = parseDate(rec.CreatedAt); err != nil {
			rep.skip("user %s: %v", rec.Email, err)
			return
		}
	}
	u := model.User{
		ID:           rec.ID,
		Name:         rec.Name,
		Email:        rec.Email,
		Role:         role,
		Phone:        rec.Phone,
		Organization: rec.Organization,
		CreatedAt:    created,
		Active:       rec.Active,
		PasswordHash: rec.PasswordHash,
	}
	if err := accounts.Add(u); err != nil {
		rep.skip("user %s: %v", rec.Email, err)
		return
	}
	rep.Decoded++
}
