package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// DiskStore keeps image blobs as plain files under a directory
type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "create %s", dir)
	}
	return &DiskStore{dir: dir}, nil
}

// Path is where the blob for key lives
func (d *DiskStore) Path(key string) string {
	return filepath.Join(d.dir, filepath.Base(key))
}

func (d *DiskStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(d.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", key)
	}
	return data, nil
}

// Put writes through a temp file renamed into place
func (d *DiskStore) Put(_ context.Context, key string, data []byte, _ string) error {
	tmp, err := os.CreateTemp(d.dir, ".blob-*")
	if err != nil {
		return eris.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return eris.Wrapf(err, "write %s", key)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "close %s", key)
	}
	return eris.Wrapf(os.Rename(tmp.Name(), d.Path(key)), "rename %s", key)
}
