package upload

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
)

const (
	// LockFile is held inside a directory while a job is using it.
	LockFile = ".locking"

	// DeleteMarker flags a directory for removal by Area.PurgeMarked.
	DeleteMarker = ".clean-me"

	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

var (
	// ErrLocked is returned when locking a directory that is already locked.
	ErrLocked = errors.New("upload directory is locked")

	// ErrNotLocked is returned when unlocking a directory that holds no lock.
	ErrNotLocked = errors.New("upload directory is not locked")
)

// Area is the scratch root all upload directories live under.
type Area struct {
	fs     afero.Fs
	root   string
	logger *slog.Logger
}

// NewArea creates the root on fs if needed and returns an Area for it.
func NewArea(fs afero.Fs, root string, logger *slog.Logger) (*Area, error) {
	if root == "" {
		return nil, errors.New("upload root must not be empty")
	}
	if err := fs.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create upload root %s: %w", root, err)
	}

	return &Area{
		fs:     fs,
		root:   filepath.Clean(root),
		logger: logger.With("component", "upload_area"),
	}, nil
}

// Root returns the scratch root path.
func (a *Area) Root() string {
	return a.root
}

// Fs returns the filesystem the area operates on.
func (a *Area) Fs() afero.Fs {
	return a.fs
}

// NewDirectory creates a fresh, uniquely named directory under the root.
func (a *Area) NewDirectory() (*Directory, error) {
	path := filepath.Join(a.root, uuid.NewString())
	if err := a.fs.Mkdir(path, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	a.logger.Debug("created upload directory", "dir", path)
	return &Directory{fs: a.fs, path: path}, nil
}

// Directory returns a handle on an existing directory under the root.
func (a *Area) Directory(name string) (*Directory, error) {
	path := filepath.Join(a.root, filepath.Base(name))
	ok, err := afero.DirExists(a.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat upload directory %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("upload directory %s: %w", path, os.ErrNotExist)
	}
	return &Directory{fs: a.fs, path: path}, nil
}

// PurgeReport summarizes one PurgeMarked pass.
type PurgeReport struct {
	Removed []string
	Failed  []string
}

// PurgeMarked removes every directory directly under the root that carries
// DeleteMarker. A directory that cannot be removed is skipped and keeps its
// marker so a later pass can retry, even when some of its contents are
// already gone; the returned error combines all such failures. Entries
// without the marker are never touched.
func (a *Area) PurgeMarked() (PurgeReport, error) {
	var report PurgeReport

	entries, err := afero.ReadDir(a.fs, a.root)
	if err != nil {
		return report, fmt.Errorf("failed to list upload root %s: %w", a.root, err)
	}

	var errs error
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		path := filepath.Join(a.root, entry.Name())
		marked, err := afero.Exists(a.fs, filepath.Join(path, DeleteMarker))
		if err != nil {
			a.logger.Warn("failed to check delete marker", "dir", path, "error", err)
			errs = multierr.Append(errs, err)
			report.Failed = append(report.Failed, path)
			continue
		}
		if !marked {
			continue
		}

		if err := a.purge(path); err != nil {
			a.logger.Warn("failed to delete marked upload directory", "dir", path, "error", err)
			errs = multierr.Append(errs, fmt.Errorf("failed to delete %s: %w", path, err))
			report.Failed = append(report.Failed, path)
			continue
		}

		a.logger.Debug("deleted marked upload directory", "dir", path)
		report.Removed = append(report.Removed, path)
	}

	return report, errs
}

// purge empties a marked directory and removes it. The marker goes last and
// is written back if the directory itself cannot be removed.
func (a *Area) purge(path string) error {
	entries, err := afero.ReadDir(a.fs, path)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", path, err)
	}

	var errs error
	for _, entry := range entries {
		if entry.Name() == DeleteMarker {
			continue
		}
		errs = multierr.Append(errs, a.fs.RemoveAll(filepath.Join(path, entry.Name())))
	}
	if errs != nil {
		return errs
	}

	marker := filepath.Join(path, DeleteMarker)
	if err := a.fs.Remove(marker); err != nil {
		return err
	}
	if err := a.fs.Remove(path); err != nil {
		if restoreErr := afero.WriteFile(a.fs, marker, nil, filePerm); restoreErr != nil {
			return multierr.Append(err, fmt.Errorf("failed to restore delete marker: %w", restoreErr))
		}
		return err
	}
	return nil
}
