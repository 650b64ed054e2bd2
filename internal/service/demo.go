package service

import (
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/event-registry/internal/model"
	"github.com/Shivanand-hulikatti/event-registry/internal/registry"
)

type demoEvent struct {
	info     model.EventInfo
	kind     model.Kind
	theme    string
	speakers []model.Speaker
	artist   string
	genre    string
	enrolled []string
}

var demoUsers = []model.User{
	{ID: "U-ADMIN", Name: "Admin", Email: "admin@events.local", Role: model.RoleAdmin},
	{ID: "U-ORG-1", Name: "Claire Martin", Email: "claire.martin@events.local", Role: model.RoleOrganizer, Organization: "Tech Events SARL", Phone: "+33 1 23 45 67 89"},
	{ID: "U-P-1", Name: "Alice Dupont", Email: "alice.dupont@example.com", Role: model.RoleParticipant},
	{ID: "U-P-2", Name: "Bruno Leroy", Email: "bruno.leroy@example.com", Role: model.RoleParticipant},
	{ID: "U-P-3", Name: "Chloé Bernard", Email: "chloe.bernard@example.com", Role: model.RoleParticipant},
}

// demoEvents are dated relative to day so upcoming-event queries stay
// meaningful whenever the seed is loaded.
func demoEvents(day time.Time) []demoEvent {
	at := func(days, hour int) time.Time {
		return day.AddDate(0, 0, days).Add(time.Duration(hour) * time.Hour)
	}
	return []demoEvent{
		{
			info:  model.EventInfo{ID: "CONF-001", Name: "Go Summit", Date: at(30, 9), Location: "Paris - Palais des Congrès", Capacity: 150},
			kind:  model.KindConference,
			theme: "Cloud native Go",
			speakers: []model.Speaker{
				{Name: "Jean Morel", Specialty: "Distributed systems"},
				{Name: "Sofia Rossi", Specialty: "Observability"},
			},
			enrolled: []string{"U-P-1", "U-P-2"},
		},
		{
			info:     model.EventInfo{ID: "CONF-002", Name: "Data Days", Date: at(60, 10), Location: "Lyon - Cité Internationale", Capacity: 80},
			kind:     model.KindConference,
			theme:    "Data engineering",
			speakers: []model.Speaker{{Name: "Hugo Petit", Specialty: "Streaming"}},
			enrolled: []string{"U-P-3"},
		},
		{
			info:     model.EventInfo{ID: "CONC-001", Name: "Jazz à Vienne", Date: at(45, 20), Location: "Vienne - Théâtre Antique", Capacity: 300},
			kind:     model.KindConcert,
			artist:   "Ibrahim Maalouf",
			genre:    "Jazz",
			enrolled: []string{"U-P-1", "U-P-3"},
		},
		{
			info:   model.EventInfo{ID: "CONC-002", Name: "Rock en Seine", Date: at(-10, 18), Location: "Saint-Cloud", Capacity: 500},
			kind:   model.KindConcert,
			artist: "Phoenix",
			genre:  "Rock",
		},
	}
}

// ReloadDemoData clears the registry and directory and repopulates them
// from the fixed demo seed. Default observers are attached to every seeded
// event.
func (s *SyncService) ReloadDemoData() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := s.now().Truncate(time.Second)
	accounts := registry.NewAccounts()
	people := make(map[string]model.Participant, len(demoUsers))
	for _, u := range demoUsers {
		u.CreatedAt = created
		u.Active = true
		if err := accounts.Add(u); err != nil {
			return fmt.Errorf("seed users: %w", err)
		}
		people[u.ID] = u.AsParticipant()
	}

	y, m, d := s.now().Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	events := registry.New()
	for _, de := range demoEvents(day) {
		var (
			e   *model.Event
			err error
		)
		if de.kind == model.KindConference {
			e, err = model.NewConference(de.info, de.theme, de.speakers)
		} else {
			e, err = model.NewConcert(de.info, de.artist, de.genre)
		}
		if err != nil {
			return fmt.Errorf("seed event %s: %w", de.info.ID, err)
		}
		for _, id := range de.enrolled {
			if err := e.Enroll(people[id]); err != nil {
				return fmt.Errorf("seed event %s: %w", de.info.ID, err)
			}
		}
		if err := events.Add(e); err != nil {
			return fmt.Errorf("seed event %s: %w", de.info.ID, err)
		}
	}

	s.replace(events, accounts)
	s.logger.WithField("events", s.events.Size()).Info("demo data loaded")
	return nil
}
