// Package service implements the synchronization facade: the single entry
// point that keeps the registry, the account directory, observers, metrics
// and persistence in step.
//
// Organizer coupling: the facade never cascades. Removing an event from the
// registry leaves it in any organizer's owned list, and cancelling an event
// only notifies its observers. Callers that need organizer lists to follow
// registry removals must call Organizer.RemoveEvent themselves.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/event-registry/internal/codec"
	"github.com/Shivanand-hulikatti/event-registry/internal/metrics"
	"github.com/Shivanand-hulikatti/event-registry/internal/model"
	"github.com/Shivanand-hulikatti/event-registry/internal/notify"
	"github.com/Shivanand-hulikatti/event-registry/internal/registry"
	"github.com/Shivanand-hulikatti/event-registry/internal/repository"
)

// ErrNoStorage is returned by Save and Load when no file repository is
// configured.
var ErrNoStorage = errors.New("no storage configured")

// SnapshotStore mirrors saved payloads. *repository.SnapshotRepository
// implements it.
type SnapshotStore interface {
	Save(ctx context.Context, kind repository.Kind, format codec.Format, payload []byte) (*repository.Snapshot, error)
	Latest(ctx context.Context, kind repository.Kind, format codec.Format) (*repository.Snapshot, error)
}

// Paths locates the events and users files.
type Paths struct {
	Events string `json:"events"`
	Users  string `json:"users"`
}

// Stats is a point-in-time summary computed on demand.
type Stats struct {
	TotalEvents int `json:"total_events"`
	// TotalParticipants counts distinct participant IDs across events.
	TotalParticipants int `json:"total_participants"`
	// TotalInscriptions counts enrollments; one person in two events is two.
	TotalInscriptions int `json:"total_inscriptions"`
}

// LoadResult carries the decode reports of a load.
type LoadResult struct {
	Events codec.Report
	Users  codec.Report
}

// SyncService is the synchronization facade.
type SyncService struct {
	// mu serialises wholesale replacement (load, reload) and saves so a
	// save never observes a half-replaced registry.
	mu sync.Mutex

	events   *registry.Registry
	accounts *registry.Accounts

	orgMu      sync.RWMutex
	organizers map[string]*model.Organizer

	files     *repository.FileRepository
	paths     Paths
	snapshots SnapshotStore

	exportDir    string
	exportBackup repository.Snapshotter

	observers []notify.Observer
	metrics   *metrics.Metrics
	logger    *logrus.Logger
	now       func() time.Time
}

// Option configures a SyncService.
type Option func(*SyncService)

// WithFiles sets the file repository and the paths it writes to.
func WithFiles(files *repository.FileRepository, paths Paths) Option {
	return func(s *SyncService) {
		s.files = files
		s.paths = paths
	}
}

// WithExport sets the directory Export writes into and the backup policy
// applied to files already there. A nil policy keeps backups in
// dir/backups.
func WithExport(dir string, policy repository.Snapshotter) Option {
	return func(s *SyncService) {
		s.exportDir = dir
		s.exportBackup = policy
	}
}

// WithSnapshots mirrors every save into store.
func WithSnapshots(store SnapshotStore) Option {
	return func(s *SyncService) { s.snapshots = store }
}

// WithObservers attaches the given observers to every event the facade
// adds or loads.
func WithObservers(observers ...notify.Observer) Option {
	return func(s *SyncService) { s.observers = append(s.observers, observers...) }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *SyncService) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *SyncService) { s.logger = logger }
}

// WithClock overrides the clock used for demo dates and account creation.
func WithClock(now func() time.Time) Option {
	return func(s *SyncService) { s.now = now }
}

// NewSyncService constructs the facade over an explicit registry and
// account directory.
func NewSyncService(events *registry.Registry, accounts *registry.Accounts, opts ...Option) *SyncService {
	s := &SyncService{
		events:     events,
		accounts:   accounts,
		organizers: make(map[string]*model.Organizer),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logrus.New()
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	if s.files != nil {
		s.files.OnBackupFailure(func(error) { s.metrics.BackupFailures.Inc() })
	}
	for _, e := range s.events.All() {
		s.attach(e)
	}
	s.metrics.SetEvents(s.events.Size())
	return s
}

// attach wires the default observers, the failure handler and the
// notification counter into e.
func (s *SyncService) attach(e *model.Event) {
	for _, o := range s.observers {
		e.AddObserver(o)
	}
	e.AddObserver(notify.ObserverFunc(func(string) { s.metrics.Notifications.Inc() }))
	id := e.ID()
	e.OnDeliveryFailure(func(err error) {
		s.metrics.DeliveryFailures.Inc()
		s.logger.WithError(err).WithField("event_id", id).Warn("observer delivery failed")
	})
}

// AddEventWithSync adds e to the registry and attaches the default
// observers. A duplicate ID leaves the registry unchanged.
func (s *SyncService) AddEventWithSync(e *model.Event) error {
	if err := s.events.Add(e); err != nil {
		return fmt.Errorf("add event: %w", err)
	}
	s.attach(e)
	s.metrics.SetEvents(s.events.Size())
	s.logger.WithFields(logrus.Fields{"event_id": e.ID(), "kind": e.Kind()}).Info("event added")
	return nil
}

// CreateEvent builds the requested variant, generating an ID when none is
// given, and adds it.
func (s *SyncService) CreateEvent(req model.CreateEventRequest) (*model.Event, error) {
	req.Name = strings.TrimSpace(req.Name)
	if strings.TrimSpace(req.ID) == "" {
		req.ID = uuid.New().String()
	}
	e, err := req.Build()
	if err != nil {
		return nil, err
	}
	if err := s.AddEventWithSync(e); err != nil {
		return nil, err
	}
	return e, nil
}

// RemoveEventWithSync removes the event from the registry. It does not
// touch organizer lists and does not notify observers.
func (s *SyncService) RemoveEventWithSync(id string) error {
	if err := s.events.Remove(id); err != nil {
		return fmt.Errorf("remove event: %w", err)
	}
	s.metrics.SetEvents(s.events.Size())
	s.logger.WithField("event_id", id).Info("event removed")
	return nil
}

// FindEvent returns the event with id or model.ErrNotFound.
func (s *SyncService) FindEvent(id string) (*model.Event, error) {
	e, ok := s.events.Find(id)
	if !ok {
		return nil, fmt.Errorf("event %s: %w", id, model.ErrNotFound)
	}
	return e, nil
}

// ListEvents returns every event in insertion order.
func (s *SyncService) ListEvents() []model.EventView {
	return s.events.Views()
}

// SearchByLocation returns events whose location contains q, ignoring case.
func (s *SyncService) SearchByLocation(q string) []model.EventView {
	return views(s.events.FindByLocation(q))
}

// UpcomingEvents returns events after now, soonest first.
func (s *SyncService) UpcomingEvents() []model.EventView {
	return views(s.events.FutureEvents())
}

func views(events []*model.Event) []model.EventView {
	out := make([]model.EventView, 0, len(events))
	for _, e := range events {
		out = append(out, e.View())
	}
	return out
}

// Enroll adds p to the event. A participant without an ID gets a generated
// one, which is returned.
func (s *SyncService) Enroll(eventID string, p model.Participant) (model.Participant, error) {
	e, err := s.FindEvent(eventID)
	if err != nil {
		return model.Participant{}, err
	}
	if strings.TrimSpace(p.ID) == "" {
		p.ID = uuid.New().String()
	}
	p.Email = model.NormalizeEmail(p.Email)
	if err := e.Enroll(p); err != nil {
		switch {
		case errors.Is(err, model.ErrCapacityExceeded):
			s.metrics.IncEnrollment(metrics.OutcomeFull)
		case errors.Is(err, model.ErrAlreadyEnrolled):
			s.metrics.IncEnrollment(metrics.OutcomeDuplicate)
		}
		return model.Participant{}, err
	}
	s.metrics.IncEnrollment(metrics.OutcomeEnrolled)
	return p, nil
}

// Withdraw removes the participant with participantID from the event.
func (s *SyncService) Withdraw(eventID, participantID string) error {
	e, err := s.FindEvent(eventID)
	if err != nil {
		return err
	}
	if err := e.Withdraw(model.Participant{ID: participantID}); err != nil {
		return err
	}
	s.metrics.IncEnrollment(metrics.OutcomeWithdrawn)
	return nil
}

// CancelEvent notifies the event's observers of its cancellation. The event
// stays in the registry.
func (s *SyncService) CancelEvent(id string) error {
	e, err := s.FindEvent(id)
	if err != nil {
		return err
	}
	e.Cancel()
	s.logger.WithField("event_id", id).Info("event cancelled")
	return nil
}

// GetSystemStats computes the statistics from the current registry.
func (s *SyncService) GetSystemStats() Stats {
	all := s.events.All()
	stats := Stats{TotalEvents: len(all)}
	seen := make(map[string]struct{})
	for _, e := range all {
		for _, p := range e.Participants() {
			stats.TotalInscriptions++
			seen[p.ID] = struct{}{}
		}
	}
	stats.TotalParticipants = len(seen)
	return stats
}

// RegisterUser adds an account. The email is normalised, a missing ID is
// generated, and new accounts start active.
func (s *SyncService) RegisterUser(u model.User) (model.User, error) {
	u.Email = model.NormalizeEmail(u.Email)
	if u.Email == "" {
		return model.User{}, fmt.Errorf("email is required: %w", model.ErrInvalidUser)
	}
	role, err := model.ParseRole(string(u.Role))
	if err != nil {
		return model.User{}, fmt.Errorf("register %s: %w", u.Email, err)
	}
	u.Role = role
	if strings.TrimSpace(u.ID) == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().Truncate(time.Second)
	}
	u.Active = true
	if err := s.accounts.Add(u); err != nil {
		return model.User{}, fmt.Errorf("register %s: %w", u.Email, err)
	}
	return u.Redacted(), nil
}

// Users returns every account, redacted, in registration order.
func (s *SyncService) Users() []model.User {
	all := s.accounts.All()
	for i := range all {
		all[i] = all[i].Redacted()
	}
	return all
}

// AssignOrganizer records eventID in the owned list of the organizer
// account with email. The organizer is created on first use.
func (s *SyncService) AssignOrganizer(eventID, email string) (*model.Organizer, error) {
	e, err := s.FindEvent(eventID)
	if err != nil {
		return nil, err
	}
	u, err := s.accounts.FindByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("organizer %s: %w", email, err)
	}
	if u.Role != model.RoleOrganizer {
		return nil, fmt.Errorf("user %s is not an organizer: %w", u.Email, model.ErrWrongKind)
	}
	s.orgMu.Lock()
	org, ok := s.organizers[u.Email]
	if !ok {
		org = u.AsOrganizer()
		s.organizers[u.Email] = org
	}
	s.orgMu.Unlock()
	org.AddEvent(e)
	return org, nil
}

// Organizer returns the organizer registered under email.
func (s *SyncService) Organizer(email string) (*model.Organizer, error) {
	s.orgMu.RLock()
	defer s.orgMu.RUnlock()
	org, ok := s.organizers[model.NormalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("organizer %s: %w", email, model.ErrNotFound)
	}
	return org, nil
}

// replace swaps in a freshly loaded registry and directory. Organizer lists
// refer to the old event objects and are reset. Callers hold s.mu.
func (s *SyncService) replace(events *registry.Registry, accounts *registry.Accounts) {
	for _, e := range events.All() {
		s.attach(e)
	}
	s.events.ReplaceWith(events)
	if accounts != nil {
		s.accounts.ReplaceWith(accounts)
	}
	s.orgMu.Lock()
	s.organizers = make(map[string]*model.Organizer)
	s.orgMu.Unlock()
	s.metrics.SetEvents(s.events.Size())
}
