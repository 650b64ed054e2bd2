package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/event-registry/internal/codec"
	"github.com/Shivanand-hulikatti/event-registry/internal/model"
	"github.com/Shivanand-hulikatti/event-registry/internal/registry"
)

// Snapshotter takes a copy of a file before it is overwritten.
// *backup.Policy implements it.
type Snapshotter interface {
	SnapshotIfExists(path string) (string, error)
}

// FileRepository persists the registry and account directory to files in
// one codec's format.
//
// Saving runs encode → snapshotIfExists → atomic write. The payload is
// encoded in memory first, so a failed encode leaves the target untouched,
// and the backup is taken before the target is replaced. A failed backup is
// logged and does not stop the write.
type FileRepository struct {
	codec        codec.Codec
	backup       Snapshotter
	logger       *logrus.Logger
	backupFailed func(error)
}

// NewFileRepository constructs a FileRepository. backup may be nil to skip
// the snapshot stage.
func NewFileRepository(c codec.Codec, backup Snapshotter, logger *logrus.Logger) *FileRepository {
	if logger == nil {
		logger = logrus.New()
	}
	return &FileRepository{codec: c, backup: backup, logger: logger}
}

// OnBackupFailure installs a callback for snapshot errors, in addition to
// the warning that is always logged.
func (r *FileRepository) OnBackupFailure(fn func(error)) { r.backupFailed = fn }

// Format returns the codec's format.
func (r *FileRepository) Format() codec.Format { return r.codec.Format() }

// SaveEvents writes events to path.
func (r *FileRepository) SaveEvents(ctx context.Context, path string, events []model.EventView) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.codec.EncodeEvents(ctx, &buf, events); err != nil {
		return nil, fmt.Errorf("encode events: %w", err)
	}
	if err := r.write(ctx, path, buf.Bytes()); err != nil {
		return nil, err
	}
	r.logger.WithFields(logrus.Fields{
		"path":   path,
		"format": r.codec.Format(),
		"events": len(events),
	}).Info("events saved")
	return buf.Bytes(), nil
}

// SaveUsers writes accounts to path.
func (r *FileRepository) SaveUsers(ctx context.Context, path string, users []model.User) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.codec.EncodeUsers(ctx, &buf, users); err != nil {
		return nil, fmt.Errorf("encode users: %w", err)
	}
	if err := r.write(ctx, path, buf.Bytes()); err != nil {
		return nil, err
	}
	r.logger.WithFields(logrus.Fields{
		"path":   path,
		"format": r.codec.Format(),
		"users":  len(users),
	}).Info("users saved")
	return buf.Bytes(), nil
}

// LoadEvents reads the registry stored at path. A missing file yields an
// empty registry.
func (r *FileRepository) LoadEvents(ctx context.Context, path string) (*registry.Registry, codec.Report, error) {
	data, ok, err := readIfExists(path)
	if err != nil || !ok {
		if err != nil {
			return nil, codec.Report{}, err
		}
		return registry.New(), codec.Report{}, nil
	}
	reg, rep, err := r.codec.DecodeEvents(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, rep, fmt.Errorf("load events %s: %w", path, err)
	}
	r.logReport(path, "events", rep)
	return reg, rep, nil
}

// LoadUsers reads the account directory stored at path. A missing file
// yields an empty directory.
func (r *FileRepository) LoadUsers(ctx context.Context, path string) (*registry.Accounts, codec.Report, error) {
	data, ok, err := readIfExists(path)
	if err != nil || !ok {
		if err != nil {
			return nil, codec.Report{}, err
		}
		return registry.NewAccounts(), codec.Report{}, nil
	}
	accounts, rep, err := r.codec.DecodeUsers(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, rep, fmt.Errorf("load users %s: %w", path, err)
	}
	r.logReport(path, "users", rep)
	return accounts, rep, nil
}

func (r *FileRepository) logReport(path, what string, rep codec.Report) {
	entry := r.logger.WithFields(logrus.Fields{
		"path":    path,
		"format":  r.codec.Format(),
		"decoded": rep.Decoded,
	})
	for _, issue := range rep.Issues {
		entry.Warn(issue)
	}
	if !rep.Clean() {
		entry.WithFields(logrus.Fields{
			"skipped": rep.Skipped,
			"dropped": rep.DroppedParticipants,
		}).Warnf("%s loaded with issues", what)
		return
	}
	entry.Infof("%s loaded", what)
}

func readIfExists(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	return data, true, nil
}

// write snapshots the current file, then replaces it atomically using a
// temp file + rename.
func (r *FileRepository) write(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.backup != nil {
		backupPath, err := r.backup.SnapshotIfExists(path)
		switch {
		case err != nil:
			r.logger.WithError(err).WithField("path", path).Warn("backup failed, overwriting anyway")
			if r.backupFailed != nil {
				r.backupFailed(err)
			}
		case backupPath != "":
			r.logger.WithFields(logrus.Fields{"path": path, "backup": backupPath}).Debug("backup created")
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
