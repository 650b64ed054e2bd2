package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Shivanand-hulikatti/event-registry/internal/backup"
	"github.com/Shivanand-hulikatti/event-registry/internal/codec"
	"github.com/Shivanand-hulikatti/event-registry/internal/metrics"
	"github.com/Shivanand-hulikatti/event-registry/internal/model"
	"github.com/Shivanand-hulikatti/event-registry/internal/registry"
	"github.com/Shivanand-hulikatti/event-registry/internal/repository"
)

var fixedNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type memorySnapshots struct {
	mu    sync.Mutex
	saved []repository.Snapshot
	fail  error
}

func (m *memorySnapshots) Save(_ context.Context, kind repository.Kind, format codec.Format, payload []byte) (*repository.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	snap := repository.Snapshot{ID: string(kind), Kind: kind, Format: format, Payload: append([]byte(nil), payload...), CreatedAt: fixedNow}
	m.saved = append(m.saved, snap)
	return &snap, nil
}

func (m *memorySnapshots) Latest(_ context.Context, kind repository.Kind, format codec.Format) (*repository.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.saved) - 1; i >= 0; i-- {
		if m.saved[i].Kind == kind && m.saved[i].Format == format {
			s := m.saved[i]
			return &s, nil
		}
	}
	return nil, model.ErrNotFound
}

type panickingObserver struct{}

func (panickingObserver) Notify(string) { panic("observer down") }

type SyncServiceSuite struct {
	suite.Suite
	dir       string
	recorder  *Recorder
	metrics   *metrics.Metrics
	snapshots *memorySnapshots
	svc       *SyncService
}

func TestSyncServiceSuite(t *testing.T) {
	suite.Run(t, new(SyncServiceSuite))
}

func (s *SyncServiceSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.recorder = NewRecorder(0)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.snapshots = &memorySnapshots{}
	s.svc = s.newService(codec.JSON{})
}

func (s *SyncServiceSuite) newService(c codec.Codec) *SyncService {
	logger, _ := test.NewNullLogger()
	files := repository.NewFileRepository(c, backup.New(filepath.Join(s.dir, "backups")), logger)
	return NewSyncService(
		registry.New(registry.WithClock(func() time.Time { return fixedNow })),
		registry.NewAccounts(),
		WithFiles(files, Paths{
			Events: filepath.Join(s.dir, "events"+c.Format().Ext()),
			Users:  filepath.Join(s.dir, "users"+c.Format().Ext()),
		}),
		WithSnapshots(s.snapshots),
		WithExport(filepath.Join(s.dir, "export"), nil),
		WithObservers(s.recorder),
		WithMetrics(s.metrics),
		WithLogger(logger),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func (s *SyncServiceSuite) concert(id string, capacity int) *model.Event {
	e, err := model.NewConcert(model.EventInfo{
		ID:       id,
		Name:     "Concert " + id,
		Date:     fixedNow.Add(48 * time.Hour),
		Location: "Nantes",
		Capacity: capacity,
	}, "Artist", "Pop")
	s.Require().NoError(err)
	return e
}

func (s *SyncServiceSuite) TestAddEventWithSyncAttachesObservers() {
	e := s.concert("C-1", 2)
	s.Require().NoError(s.svc.AddEventWithSync(e))

	_, err := s.svc.Enroll("C-1", model.Participant{ID: "P-1", Name: "Ana"})
	s.Require().NoError(err)

	msgs := s.recorder.Messages()
	s.Require().Len(msgs, 1)
	s.Contains(msgs[0], "Ana")
	s.Contains(msgs[0], "added")
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Notifications))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Events))
}

func (s *SyncServiceSuite) TestAddEventWithSyncDuplicate() {
	s.Require().NoError(s.svc.AddEventWithSync(s.concert("C-1", 2)))

	err := s.svc.AddEventWithSync(s.concert("C-1", 9))

	s.ErrorIs(err, model.ErrDuplicateEvent)
	e, err := s.svc.FindEvent("C-1")
	s.Require().NoError(err)
	s.Equal(2, e.Capacity())
}

func (s *SyncServiceSuite) TestRemoveEventWithSync() {
	s.Require().NoError(s.svc.AddEventWithSync(s.concert("C-1", 2)))

	s.Require().NoError(s.svc.RemoveEventWithSync("C-1"))
	s.ErrorIs(s.svc.RemoveEventWithSync("C-1"), model.ErrNotFound)

	_, err := s.svc.FindEvent("C-1")
	s.ErrorIs(err, model.ErrNotFound)
	s.Empty(s.recorder.Messages())
}

func (s *SyncServiceSuite) TestRemoveDoesNotCascadeToOrganizer() {
	s.Require().NoError(s.svc.AddEventWithSync(s.concert("C-1", 2)))
	_, err := s.svc.RegisterUser(model.User{Name: "Org", Email: "Org@Example.com", Role: model.RoleOrganizer})
	s.Require().NoError(err)
	org, err := s.svc.AssignOrganizer("C-1", "org@example.com")
	s.Require().NoError(err)

	s.Require().NoError(s.svc.RemoveEventWithSync("C-1"))

	s.True(org.HasEvent("C-1"))
	same, err := s.svc.Organizer("ORG@example.com")
	s.Require().NoError(err)
	s.Same(org, same)
}

func (s *SyncServiceSuite) TestAssignOrganizerRequiresOrganizerRole() {
	s.Require().NoError(s.svc.AddEventWithSync(s.concert("C-1", 2)))
	_, err := s.svc.RegisterUser(model.User{Name: "P", Email: "p@example.com", Role: model.RoleParticipant})
	s.Require().NoError(err)

	_, err = s.svc.AssignOrganizer("C-1", "p@example.com")
	s.ErrorIs(err, model.ErrWrongKind)

	_, err = s.svc.AssignOrganizer("C-1", "nobody@example.com")
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *SyncServiceSuite) TestEnrollOutcomes() {
	s.Require().NoError(s.svc.AddEventWithSync(s.concert("C-1", 1)))

	p, err := s.svc.Enroll("C-1", model.Participant{Name: "Anon", Email: " Anon@Example.COM "})
	s.Require().NoError(err)
	s.NotEmpty(p.ID)
	s.Equal("anon@example.com", p.Email)

	_, err = s.svc.Enroll("C-1", p)
	s.ErrorIs(err, model.ErrCapacityExceeded)

	_, err = s.svc.Enroll("missing", p)
	s.ErrorIs(err, model.ErrNotFound)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.Enrollments.WithLabelValues(metrics.OutcomeEnrolled)))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Enrollments.WithLabelValues(metrics.OutcomeFull)))
}

func (s *SyncServiceSuite) TestWithdrawAndCancel() {
	s.Require().NoError(s.svc.AddEventWithSync(s.concert("C-1", 2)))
	_, err := s.svc.Enroll("C-1", model.Participant{ID: "P-1", Name: "Ana"})
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Withdraw("C-1", "P-1"))
	s.ErrorIs(s.svc.Withdraw("C-1", "P-1"), model.ErrNotFound)
	s.Require().NoError(s.svc.CancelEvent("C-1"))
	s.ErrorIs(s.svc.CancelEvent("nope"), model.ErrNotFound)

	msgs := s.recorder.Messages()
	s.Require().Len(msgs, 3)
	s.Contains(msgs[1], "removed")
	s.Contains(msgs[2], "cancelled")
	s.Contains(msgs[2], "Artist")

	_, err = s.svc.FindEvent("C-1")
	s.NoError(err, "cancel must not remove the event")
}

func (s *SyncServiceSuite) TestObserverFailureIsIsolatedAndCounted() {
	logger, hook := test.NewNullLogger()
	svc := NewSyncService(registry.New(), registry.NewAccounts(),
		WithObservers(panickingObserver{}, s.recorder),
		WithMetrics(s.metrics),
		WithLogger(logger),
	)
	s.Require().NoError(svc.AddEventWithSync(s.concert("C-1", 2)))

	_, err := svc.Enroll("C-1", model.Participant{ID: "P-1", Name: "Ana"})

	s.Require().NoError(err)
	s.Len(s.recorder.Messages(), 1)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.DeliveryFailures))
	s.Require().NotNil(hook.LastEntry())
	s.Equal("observer delivery failed", hook.LastEntry().Message)
}

func (s *SyncServiceSuite) TestGetSystemStats() {
	s.Require().NoError(s.svc.AddEventWithSync(s.concert("C-1", 5)))
	s.Require().NoError(s.svc.AddEventWithSync(s.concert("C-2", 5)))
	for _, id := range []string{"A", "B"} {
		_, err := s.svc.Enroll("C-1", model.Participant{ID: id})
		s.Require().NoError(err)
	}
	_, err := s.svc.Enroll("C-2", model.Participant{ID: "A"})
	s.Require().NoError(err)

	s.Equal(Stats{TotalEvents: 2, TotalParticipants: 2, TotalInscriptions: 3}, s.svc.GetSystemStats())

	s.Require().NoError(s.svc.Withdraw("C-1", "B"))
	s.Equal(Stats{TotalEvents: 2, TotalParticipants: 1, TotalInscriptions: 2}, s.svc.GetSystemStats())
}

func (s *SyncServiceSuite) TestReloadDemoData() {
	s.Require().NoError(s.svc.AddEventWithSync(s.concert("OLD", 2)))

	s.Require().NoError(s.svc.ReloadDemoData())
	first := s.svc.ListEvents()
	s.Require().NoError(s.svc.ReloadDemoData())

	s.Equal(first, s.svc.ListEvents(), "seed must be deterministic")
	s.Equal(Stats{TotalEvents: 4, TotalParticipants: 3, TotalInscriptions: 5}, s.svc.GetSystemStats())
	_, err := s.svc.FindEvent("OLD")
	s.ErrorIs(err, model.ErrNotFound)
	s.Len(s.svc.Users(), 5)

	var upcoming []string
	for _, v := range s.svc.UpcomingEvents() {
		upcoming = append(upcoming, v.ID)
	}
	s.Equal([]string{"CONF-001", "CONC-001", "CONF-002"}, upcoming)

	_, err = s.svc.Enroll("CONF-002", model.Participant{ID: "X", Name: "Xavier"})
	s.Require().NoError(err)
	msgs := s.recorder.Messages()
	s.Require().NotEmpty(msgs)
	s.Contains(msgs[len(msgs)-1], "Xavier")
}

func (s *SyncServiceSuite) TestSearchByLocation() {
	s.Require().NoError(s.svc.ReloadDemoData())

	got := s.svc.SearchByLocation("LYON")

	s.Require().Len(got, 1)
	s.Equal("CONF-002", got[0].ID)
	s.Empty(s.svc.SearchByLocation("Marseille"))
}

func (s *SyncServiceSuite) TestRegisterUser() {
	u, err := s.svc.RegisterUser(model.User{Name: "Ana", Email: "Ana@Example.com", Role: "PARTICIPANT", PasswordHash: "secret"})
	s.Require().NoError(err)
	s.NotEmpty(u.ID)
	s.Equal("ana@example.com", u.Email)
	s.Equal(model.RoleParticipant, u.Role)
	s.True(u.Active)
	s.Equal(fixedNow, u.CreatedAt)
	s.Empty(u.PasswordHash)

	_, err = s.svc.RegisterUser(model.User{Email: "ana@example.com", Role: model.RoleAdmin})
	s.ErrorIs(err, model.ErrDuplicateUser)

	_, err = s.svc.RegisterUser(model.User{Email: "x@example.com", Role: "guest"})
	s.ErrorIs(err, model.ErrInvalidUser)

	_, err = s.svc.RegisterUser(model.User{Role: model.RoleAdmin})
	s.ErrorIs(err, model.ErrInvalidUser)

	users := s.svc.Users()
	s.Require().Len(users, 1)
	s.Empty(users[0].PasswordHash)
}

func (s *SyncServiceSuite) TestSaveLoadRoundTrip() {
	s.Require().NoError(s.svc.ReloadDemoData())
	want := s.svc.ListEvents()
	wantStats := s.svc.GetSystemStats()

	s.Require().NoError(s.svc.Save(context.Background()))

	fresh := s.newService(codec.JSON{})
	res, err := fresh.Load(context.Background())
	s.Require().NoError(err)
	s.True(res.Events.Clean())
	s.Equal(4, res.Events.Decoded)
	s.Equal(5, res.Users.Decoded)

	got := fresh.ListEvents()
	s.Require().Len(got, len(want))
	for i := range want {
		s.Equal(want[i].ID, got[i].ID)
		s.Equal(want[i].Participants, got[i].Participants)
		s.True(want[i].Date.Equal(got[i].Date))
	}
	s.Equal(wantStats, fresh.GetSystemStats())
	s.Len(s.snapshots.saved, 2)
}

func (s *SyncServiceSuite) TestSaveTakesBackupOfPreviousFile() {
	s.Require().NoError(s.svc.ReloadDemoData())
	s.Require().NoError(s.svc.Save(context.Background()))
	s.Require().NoError(s.svc.Save(context.Background()))

	backups, err := backup.New(filepath.Join(s.dir, "backups")).List(filepath.Join(s.dir, "events.json"))
	s.Require().NoError(err)
	s.Len(backups, 1)
	s.Equal(2.0, testutil.ToFloat64(s.metrics.Saves.WithLabelValues("ok")))
}

func (s *SyncServiceSuite) TestSnapshotMirrorFailureDoesNotFailSave() {
	s.snapshots.fail = errors.New("db down")
	s.Require().NoError(s.svc.ReloadDemoData())

	s.Require().NoError(s.svc.Save(context.Background()))

	_, err := os.Stat(filepath.Join(s.dir, "events.json"))
	s.NoError(err)
}

func (s *SyncServiceSuite) TestLoadMissingFilesYieldsEmpty() {
	s.Require().NoError(s.svc.AddEventWithSync(s.concert("C-1", 2)))

	_, err := s.svc.Load(context.Background())

	s.Require().NoError(err)
	s.Empty(s.svc.ListEvents())
}

func (s *SyncServiceSuite) TestLoadMalformedKeepsCurrentState() {
	s.Require().NoError(s.svc.AddEventWithSync(s.concert("C-1", 2)))
	s.Require().NoError(os.WriteFile(filepath.Join(s.dir, "events.json"), []byte("[1,2"), 0o644))

	_, err := s.svc.Load(context.Background())

	s.ErrorIs(err, codec.ErrMalformed)
	s.Len(s.svc.ListEvents(), 1)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Loads.WithLabelValues("error")))
}

func (s *SyncServiceSuite) TestBootstrapSurvivesUnreadableFile() {
	path := filepath.Join(s.dir, "events.json")
	s.Require().NoError(os.WriteFile(path, []byte("[1,2"), 0o644))

	s.Require().NoError(s.svc.Bootstrap(context.Background(), false))
	s.Empty(s.svc.ListEvents())

	s.Require().NoError(s.svc.AddEventWithSync(s.concert("C-1", 2)))
	s.Require().NoError(s.svc.Save(context.Background()))
	backups, err := backup.New(filepath.Join(s.dir, "backups")).List(path)
	s.Require().NoError(err)
	s.Require().Len(backups, 1)
	kept, err := os.ReadFile(backups[0])
	s.Require().NoError(err)
	s.Equal("[1,2", string(kept))
}

func (s *SyncServiceSuite) TestBootstrapSeedsDemoWhenEmpty() {
	s.Require().NoError(s.svc.Bootstrap(context.Background(), true))
	s.Equal(4, s.svc.GetSystemStats().TotalEvents)

	s.Require().NoError(s.svc.RemoveEventWithSync("CONF-001"))
	s.Require().NoError(s.svc.Save(context.Background()))
	reloaded := s.newService(codec.JSON{})
	s.Require().NoError(reloaded.Bootstrap(context.Background(), true))
	s.Equal(3, reloaded.GetSystemStats().TotalEvents)
}

func TestBootstrapReportsReadFailures(t *testing.T) {
	dir := t.TempDir()
	svc := NewSyncService(registry.New(), registry.NewAccounts(), WithFiles(
		repository.NewFileRepository(codec.JSON{}, nil, nil),
		Paths{Events: dir, Users: filepath.Join(dir, "users.json")},
	))

	assert.Error(t, svc.Bootstrap(context.Background(), true))
	assert.Empty(t, svc.ListEvents())
}

func (s *SyncServiceSuite) TestRestoreFromSnapshots() {
	s.Require().NoError(s.svc.ReloadDemoData())
	s.Require().NoError(s.svc.Save(context.Background()))
	s.Require().NoError(s.svc.RemoveEventWithSync("CONF-001"))

	res, err := s.svc.RestoreFromSnapshots(context.Background())

	s.Require().NoError(err)
	s.Equal(4, res.Events.Decoded)
	_, err = s.svc.FindEvent("CONF-001")
	s.NoError(err)
}

func (s *SyncServiceSuite) TestExportToOtherFormat() {
	s.Require().NoError(s.svc.ReloadDemoData())
	out := filepath.Join(s.dir, "export")

	paths, err := s.svc.Export(context.Background(), codec.FormatXML)
	s.Require().NoError(err)
	s.Equal(filepath.Join(out, "events.xml"), paths.Events)

	xmlSvc := NewSyncService(registry.New(), registry.NewAccounts(), WithFiles(
		repository.NewFileRepository(codec.XML{}, nil, nil), paths,
	))
	res, err := xmlSvc.Load(context.Background())
	s.Require().NoError(err)
	s.Equal(4, res.Events.Decoded)
	s.Equal(s.svc.GetSystemStats(), xmlSvc.GetSystemStats())

	data, err := os.ReadFile(paths.Users)
	s.Require().NoError(err)
	s.NotContains(string(data), "motDePasseHash")
}

func (s *SyncServiceSuite) TestExportBacksUpPreviousExport() {
	s.Require().NoError(s.svc.ReloadDemoData())
	paths, err := s.svc.Export(context.Background(), codec.FormatXML)
	s.Require().NoError(err)
	first, err := os.ReadFile(paths.Events)
	s.Require().NoError(err)

	s.Require().NoError(s.svc.RemoveEventWithSync("CONF-001"))
	_, err = s.svc.Export(context.Background(), codec.FormatXML)
	s.Require().NoError(err)

	policy := backup.New(filepath.Join(s.dir, "export", "backups"))
	eventBackups, err := policy.List(paths.Events)
	s.Require().NoError(err)
	s.Require().Len(eventBackups, 1)
	saved, err := os.ReadFile(eventBackups[0])
	s.Require().NoError(err)
	s.Equal(first, saved)
	userBackups, err := policy.List(paths.Users)
	s.Require().NoError(err)
	s.Len(userBackups, 1)
}

func TestSaveWithoutStorage(t *testing.T) {
	svc := NewSyncService(registry.New(), registry.NewAccounts())

	assert.ErrorIs(t, svc.Save(context.Background()), ErrNoStorage)
	_, err := svc.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoStorage)
	_, err = svc.RestoreFromSnapshots(context.Background())
	assert.ErrorIs(t, err, ErrNoStorage)
	_, err = svc.Export(context.Background(), codec.FormatXML)
	assert.ErrorIs(t, err, ErrNoStorage)
}

func TestConcurrentEnrollThroughFacade(t *testing.T) {
	svc := NewSyncService(registry.New(), registry.NewAccounts())
	e, err := model.NewConference(model.EventInfo{ID: "CONF", Name: "Conf", Date: fixedNow, Location: "Lille", Capacity: 10}, "Go", nil)
	require.NoError(t, err)
	require.NoError(t, svc.AddEventWithSync(e))

	var wg sync.WaitGroup
	results := make(chan model.BookingResult, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := svc.Enroll("CONF", model.Participant{})
			results <- model.BookingResult{ParticipantID: p.ID, Success: err == nil, Error: err}
		}(i)
	}
	wg.Wait()
	close(results)

	var ok, full int
	for r := range results {
		switch {
		case r.Success:
			ok++
		case errors.Is(r.Error, model.ErrCapacityExceeded):
			full++
		}
	}
	assert.Equal(t, 10, ok)
	assert.Equal(t, 40, full)
	assert.Equal(t, 10, e.Enrolled())
}

func TestRecorderLimit(t *testing.T) {
	r := NewRecorder(2)
	r.Notify("a")
	r.Notify("b")
	r.Notify("c")

	assert.Equal(t, []string{"b", "c"}, r.Messages())
}
