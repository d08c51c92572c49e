package upload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// Directory is one job's upload directory.
type Directory struct {
	fs   afero.Fs
	path string
}

// Path returns the directory path.
func (d *Directory) Path() string {
	return d.path
}

// Name returns the last path element.
func (d *Directory) Name() string {
	return filepath.Base(d.path)
}

// Lock creates the lock file exclusively. It fails with ErrLocked if the
// lock is already held.
func (d *Directory) Lock() error {
	f, err := d.fs.OpenFile(filepath.Join(d.path, LockFile), os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", d.path, ErrLocked)
		}
		return fmt.Errorf("failed to lock %s: %w", d.path, err)
	}
	return f.Close()
}

// Unlock removes the lock file. It fails with ErrNotLocked if there is none.
func (d *Directory) Unlock() error {
	err := d.fs.Remove(filepath.Join(d.path, LockFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", d.path, ErrNotLocked)
		}
		return fmt.Errorf("failed to unlock %s: %w", d.path, err)
	}
	return nil
}

// IsLocked reports whether the lock file is present.
func (d *Directory) IsLocked() (bool, error) {
	return afero.Exists(d.fs, filepath.Join(d.path, LockFile))
}

// MarkForDeletion writes DeleteMarker. Marking twice is harmless.
func (d *Directory) MarkForDeletion() error {
	if err := afero.WriteFile(d.fs, filepath.Join(d.path, DeleteMarker), nil, filePerm); err != nil {
		return fmt.Errorf("failed to mark %s for deletion: %w", d.path, err)
	}
	return nil
}

// IsMarkedForDeletion reports whether DeleteMarker is present.
func (d *Directory) IsMarkedForDeletion() (bool, error) {
	return afero.Exists(d.fs, filepath.Join(d.path, DeleteMarker))
}

// WriteFile stores data under name inside the directory.
func (d *Directory) WriteFile(name string, data []byte) error {
	return afero.WriteFile(d.fs, filepath.Join(d.path, filepath.Base(name)), data, filePerm)
}

// Files lists the regular files in the directory in name order, leaving out
// the lock file and the delete marker.
func (d *Directory) Files() ([]string, error) {
	entries, err := afero.ReadDir(d.fs, d.path)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", d.path, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == LockFile || entry.Name() == DeleteMarker {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}

// Open opens a file in the directory for reading.
func (d *Directory) Open(name string) (afero.File, error) {
	return d.fs.Open(filepath.Join(d.path, filepath.Base(name)))
}
