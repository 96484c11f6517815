package peer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrInvalidFileName is returned for upload names with no usable base name.
var ErrInvalidFileName = errors.New("peer: invalid upload file name")

// Uploads stores files received by POST /api/data in one directory.
// A file keeps the base name it was uploaded with; a later upload with the
// same name replaces it.
type Uploads struct {
	dir string
}

// NewUploads returns an Uploads writing under dir. The directory is created
// on the first save.
func NewUploads(dir string) *Uploads {
	return &Uploads{dir: dir}
}

// Dir returns the upload directory.
func (u *Uploads) Dir() string {
	return u.dir
}

// Save copies src to the upload directory under the base name of name and
// returns the stored path.
func (u *Uploads) Save(name string, src io.Reader) (string, error) {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." || base == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}

	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	dest := filepath.Join(u.dir, base)
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dest, err)
	}

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(dest)
		return "", fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", dest, err)
	}
	return dest, nil
}
