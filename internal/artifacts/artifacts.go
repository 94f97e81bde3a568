// Package artifacts stores image originals and thumbnails on disk, addressed
// by the SHA-256 hash of the clipboard payload.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/kimhsiao/memoria/internal/errors"
	"github.com/kimhsiao/memoria/internal/logging"
)

const (
	originalsDir = "originals"
	thumbsDir    = "thumbs"
	thumbExt     = "png"
)

// Manager owns <data_dir>/images/originals and <data_dir>/images/thumbs.
type Manager struct {
	originals string
	thumbs    string
}

// New creates a Manager rooted at dataDir, creating its directories.
func New(dataDir string) (*Manager, error) {
	base := filepath.Join(dataDir, "images")
	m := &Manager{
		originals: filepath.Join(base, originalsDir),
		thumbs:    filepath.Join(base, thumbsDir),
	}
	for _, dir := range []string{m.originals, m.thumbs} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrArtifact, "failed to create artifact directory", err)
		}
	}
	return m, nil
}

// validHash rejects anything that could escape the artifact directories or
// act as a glob pattern.
func validHash(hash string) error {
	if hash == "" {
		return apperrors.New(apperrors.ErrInvalidArgument, "empty content hash")
	}
	for _, r := range hash {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return apperrors.Newf(apperrors.ErrInvalidArgument, "invalid content hash %q", hash)
		}
	}
	return nil
}

func validExt(ext string) error {
	if ext == "" || strings.ContainsAny(ext, `/\.*?[`) {
		return apperrors.Newf(apperrors.ErrInvalidArgument, "invalid file extension %q", ext)
	}
	return nil
}

// OriginalPath returns the path of the original file for hash.
func (m *Manager) OriginalPath(hash, ext string) string {
	return filepath.Join(m.originals, hash+"."+ext)
}

// ThumbnailPath returns the path of the PNG thumbnail for hash.
func (m *Manager) ThumbnailPath(hash string) string {
	return filepath.Join(m.thumbs, hash+"."+thumbExt)
}

// SaveOriginal writes the original payload. Rewriting an existing hash is harmless.
func (m *Manager) SaveOriginal(hash, ext string, data []byte) (string, error) {
	if err := validHash(hash); err != nil {
		return "", err
	}
	if err := validExt(ext); err != nil {
		return "", err
	}
	path := m.OriginalPath(hash, ext)
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// SaveThumbnail writes the PNG thumbnail.
func (m *Manager) SaveThumbnail(hash string, png []byte) (string, error) {
	if err := validHash(hash); err != nil {
		return "", err
	}
	path := m.ThumbnailPath(hash)
	if err := writeAtomic(path, png); err != nil {
		return "", err
	}
	return path, nil
}

// writeAtomic writes data to a temp file in the target directory, then
// renames it into place so readers never observe a partial file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return apperrors.Wrap(apperrors.ErrArtifact, "failed to create artifact directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return apperrors.Wrap(apperrors.ErrArtifact, "failed to create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.Wrap(apperrors.ErrArtifact, "failed to write artifact", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrap(apperrors.ErrArtifact, "failed to write artifact", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return apperrors.Wrap(apperrors.ErrArtifact, fmt.Sprintf("failed to move artifact to %s", path), err)
	}
	return nil
}

// HasThumbnail reports whether a thumbnail exists for hash.
func (m *Manager) HasThumbnail(hash string) bool {
	if validHash(hash) != nil {
		return false
	}
	_, err := os.Stat(m.ThumbnailPath(hash))
	return err == nil
}

// RemoveForHash deletes the thumbnail and every original named <hash>.*.
// Missing files are ignored; other failures are logged and swallowed.
// It returns the number of files removed.
func (m *Manager) RemoveForHash(hash string) int {
	if err := validHash(hash); err != nil {
		logging.Warn("refusing to remove artifacts", map[string]interface{}{"hash": hash, "error": err.Error()})
		return 0
	}

	removed := 0
	remove := func(path string) {
		err := os.Remove(path)
		switch {
		case err == nil:
			removed++
		case os.IsNotExist(err):
		default:
			logging.Warn("failed to remove artifact", map[string]interface{}{"path": path, "error": err.Error()})
		}
	}

	remove(m.ThumbnailPath(hash))

	matches, err := filepath.Glob(filepath.Join(m.originals, hash+".*"))
	if err != nil {
		logging.Warn("failed to list originals", map[string]interface{}{"hash": hash, "error": err.Error()})
		return removed
	}
	for _, path := range matches {
		remove(path)
	}
	return removed
}

// Usage summarizes disk usage of the artifact directories.
type Usage struct {
	Originals int   `json:"originals"`
	Thumbs    int   `json:"thumbs"`
	Bytes     int64 `json:"bytes"`
}

// Usage walks both directories and totals file counts and sizes.
func (m *Manager) Usage() (Usage, error) {
	var u Usage
	for _, dir := range []struct {
		path  string
		count *int
	}{{m.originals, &u.Originals}, {m.thumbs, &u.Thumbs}} {
		entries, err := os.ReadDir(dir.path)
		if err != nil {
			return Usage{}, apperrors.Wrap(apperrors.ErrArtifact, "failed to read artifact directory", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || strings.HasPrefix(entry.Name(), ".tmp-") {
				continue
			}
			*dir.count++
			if info, err := entry.Info(); err == nil {
				u.Bytes += info.Size()
			}
		}
	}
	return u, nil
}
