package storage

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// Artifact describes a file written by WriteFile.
type Artifact struct {
	Path     string
	Checksum string
	Bytes    int64
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

// WriteFile streams write into a temp file next to path, syncs it and renames
// it into place. Readers never see a partial file; on any error the temp file
// is removed and path is left untouched.
func WriteFile(path string, write func(io.Writer) error) (Artifact, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("create export dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return Artifact{}, fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	hasher := xxhash.New()
	counter := &countingWriter{}
	if err := write(io.MultiWriter(tmp, hasher, counter)); err != nil {
		return Artifact{}, err
	}
	if err := tmp.Sync(); err != nil {
		return Artifact{}, fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return Artifact{}, fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o640); err != nil {
		return Artifact{}, fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Artifact{}, fmt.Errorf("rename into %s: %w", path, err)
	}
	committed = true

	return Artifact{
		Path:     path,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
		Bytes:    counter.n,
	}, nil
}

func FileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to hash file %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
