package fileutils

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteAtomic renders gen into a temporary file next to path and renames it
// into place, so readers never see a partial file. If path already holds the
// same bytes it is left untouched and changed is false.
func WriteAtomic(path string, gen func(w io.Writer) error) (changed bool, err error) {
	var buf bytes.Buffer
	if err := gen(&buf); err != nil {
		return false, err
	}

	existing, err := os.ReadFile(path)
	switch {
	case err == nil && bytes.Equal(existing, buf.Bytes()):
		return false, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return false, err
	}

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		return false, err
	}
	if err := tmp.Sync(); err != nil {
		return false, err
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return false, err
	}
	if df, err := os.Open(dir); err == nil {
		_ = df.Sync()
		_ = df.Close()
	}

	return true, nil
}
