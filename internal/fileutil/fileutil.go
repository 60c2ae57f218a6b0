package fileutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrTooLarge is returned when content exceeds the caller's byte limit.
var ErrTooLarge = errors.New("content exceeds size limit")

// Staged is content written to a hidden temporary file, waiting to be
// linked under its final name.
type Staged struct {
	path string
	Size int64
}

// Stage streams r into a temporary file in dir. A limit <= 0 disables the
// size check. Callers must Discard the result.
func Stage(dir string, r io.Reader, limit int64) (*Staged, error) {
	tmp, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return nil, err
	}
	staged := &Staged{path: tmp.Name()}
	fail := func(err error) (*Staged, error) {
		_ = tmp.Close()
		staged.Discard()
		return nil, err
	}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	written, err := io.Copy(tmp, src)
	if err != nil {
		return fail(err)
	}
	if limit > 0 && written > limit {
		return fail(fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit))
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Chmod(staged.path, 0o644); err != nil {
		return fail(err)
	}
	staged.Size = written
	return staged, nil
}

// Commit makes the staged content visible as dst. It fails with an error
// matching os.ErrExist when dst already exists; the staged content stays
// available for another attempt.
func (s *Staged) Commit(dst string) error {
	return os.Link(s.path, dst)
}

// Discard removes the temporary file. Committed names are unaffected.
func (s *Staged) Discard() {
	if s != nil {
		_ = os.Remove(s.path)
	}
}

// WriteNew streams r into dst, which must not exist yet. A partial write
// never becomes visible under dst. The number of bytes written is returned.
func WriteNew(dst string, r io.Reader, limit int64) (int64, error) {
	staged, err := Stage(filepath.Dir(dst), r, limit)
	if err != nil {
		return 0, err
	}
	defer staged.Discard()
	if err := staged.Commit(dst); err != nil {
		return staged.Size, err
	}
	return staged.Size, nil
}
