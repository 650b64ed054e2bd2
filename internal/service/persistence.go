package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Shivanand-hulikatti/event-registry/internal/backup"
	"github.com/Shivanand-hulikatti/event-registry/internal/codec"
	"github.com/Shivanand-hulikatti/event-registry/internal/model"
	"github.com/Shivanand-hulikatti/event-registry/internal/registry"
	"github.com/Shivanand-hulikatti/event-registry/internal/repository"
)

// Save writes events and accounts to their files concurrently, taking a
// backup of each existing file first. When a snapshot store is configured
// the payloads are mirrored there too; a mirror failure is logged only.
func (s *SyncService) Save(ctx context.Context) (err error) {
	if s.files == nil {
		return ErrNoStorage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveSave(err) }()

	events := s.events.Views()
	users := s.accounts.All()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		payload, err := s.files.SaveEvents(gctx, s.paths.Events, events)
		if err != nil {
			return fmt.Errorf("save events: %w", err)
		}
		s.mirror(gctx, repository.KindEvents, payload)
		return nil
	})
	g.Go(func() error {
		payload, err := s.files.SaveUsers(gctx, s.paths.Users, users)
		if err != nil {
			return fmt.Errorf("save users: %w", err)
		}
		s.mirror(gctx, repository.KindUsers, payload)
		return nil
	})
	return g.Wait()
}

func (s *SyncService) mirror(ctx context.Context, kind repository.Kind, payload []byte) {
	if s.snapshots == nil {
		return
	}
	if _, err := s.snapshots.Save(ctx, kind, s.files.Format(), payload); err != nil {
		s.logger.WithError(err).WithField("kind", kind).Warn("snapshot mirror failed")
	}
}

// Load replaces the registry and directory with the contents of the files.
// Missing files load as empty. Nothing is replaced unless both loads
// succeed.
func (s *SyncService) Load(ctx context.Context) (res LoadResult, err error) {
	if s.files == nil {
		return LoadResult{}, ErrNoStorage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveLoad(err) }()

	var (
		events   *registry.Registry
		accounts *registry.Accounts
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		events, res.Events, err = s.files.LoadEvents(gctx, s.paths.Events)
		return err
	})
	g.Go(func() error {
		var err error
		accounts, res.Users, err = s.files.LoadUsers(gctx, s.paths.Users)
		return err
	})
	if err := g.Wait(); err != nil {
		return res, err
	}

	s.replace(events, accounts)
	s.countSkipped(res)
	s.logger.WithField("events", s.events.Size()).WithField("users", s.accounts.Size()).Info("registry loaded")
	return res, nil
}

// Bootstrap prepares the facade at startup. It loads the files; a file that
// cannot be decoded is logged and the facade starts empty, and the next
// Save backs the unreadable file up before replacing it. When seedDemo is
// set and nothing was loaded, the demo data is installed.
func (s *SyncService) Bootstrap(ctx context.Context, seedDemo bool) error {
	if _, err := s.Load(ctx); err != nil {
		if !errors.Is(err, codec.ErrMalformed) {
			return fmt.Errorf("load: %w", err)
		}
		s.logger.WithError(err).Error("stored data is unreadable, starting empty")
	}
	if seedDemo && s.events.Size() == 0 {
		if err := s.ReloadDemoData(); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}
	return nil
}

// RestoreFromSnapshots replaces the registry and directory with the newest
// mirrored payloads. A kind with no snapshot loads as empty.
func (s *SyncService) RestoreFromSnapshots(ctx context.Context) (res LoadResult, err error) {
	if s.snapshots == nil || s.files == nil {
		return LoadResult{}, ErrNoStorage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveLoad(err) }()

	format := s.files.Format()
	c, err := codec.ForFormat(format)
	if err != nil {
		return LoadResult{}, err
	}

	events := registry.New()
	if snap, err := s.snapshots.Latest(ctx, repository.KindEvents, format); err == nil {
		events, res.Events, err = c.DecodeEvents(ctx, bytes.NewReader(snap.Payload))
		if err != nil {
			return res, fmt.Errorf("restore events snapshot %s: %w", snap.ID, err)
		}
	} else if !errors.Is(err, model.ErrNotFound) {
		return res, err
	}

	accounts := registry.NewAccounts()
	if snap, err := s.snapshots.Latest(ctx, repository.KindUsers, format); err == nil {
		accounts, res.Users, err = c.DecodeUsers(ctx, bytes.NewReader(snap.Payload))
		if err != nil {
			return res, fmt.Errorf("restore users snapshot %s: %w", snap.ID, err)
		}
	} else if !errors.Is(err, model.ErrNotFound) {
		return res, err
	}

	s.replace(events, accounts)
	s.countSkipped(res)
	s.logger.WithField("events", s.events.Size()).Info("registry restored from snapshots")
	return res, nil
}

func (s *SyncService) countSkipped(res LoadResult) {
	n := res.Events.Skipped + res.Events.DroppedParticipants + res.Users.Skipped
	s.metrics.SkippedRecords.Add(float64(n))
}

// Export writes events and accounts in format into the export directory
// and returns the two paths written. Existing files there are backed up
// first, as on Save.
func (s *SyncService) Export(ctx context.Context, format codec.Format) (Paths, error) {
	if s.exportDir == "" {
		return Paths{}, ErrNoStorage
	}
	c, err := codec.ForFormat(format)
	if err != nil {
		return Paths{}, err
	}
	policy := s.exportBackup
	if policy == nil {
		policy = backup.New(filepath.Join(s.exportDir, "backups"))
	}
	files := repository.NewFileRepository(c, policy, s.logger)
	files.OnBackupFailure(func(error) { s.metrics.BackupFailures.Inc() })
	paths := Paths{
		Events: filepath.Join(s.exportDir, "events"+format.Ext()),
		Users:  filepath.Join(s.exportDir, "users"+format.Ext()),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.events.Views()
	users := s.accounts.All()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := files.SaveEvents(gctx, paths.Events, events)
		return err
	})
	g.Go(func() error {
		_, err := files.SaveUsers(gctx, paths.Users, users)
		return err
	})
	if err := g.Wait(); err != nil {
		return Paths{}, fmt.Errorf("export %s: %w", format, err)
	}
	s.logger.WithFields(logrus.Fields{"format": format, "dir": s.exportDir}).Info("registry exported")
	return paths, nil
}
