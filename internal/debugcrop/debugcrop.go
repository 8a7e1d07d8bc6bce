// Package debugcrop persists sampled regions to disk for profile tuning.
// Each region key is written once at watch start, and again on every hit
// unless the crop is perceptually identical to the last one saved.
package debugcrop

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/corona10/goimagehash"
	"golang.org/x/image/bmp"
)

// MaxDuplicateDistance is the pHash Hamming distance at or under which a
// hit crop counts as a repeat of the previous one and is not re-saved.
const MaxDuplicateDistance = 3

// Saver writes region crops into a directory. A nil Saver or one built
// with an empty dir discards everything, so callers can wire it
// unconditionally.
type Saver struct {
	dir   string
	once  map[string]bool
	hash  map[string]*goimagehash.ImageHash
	clock func() time.Time
}

// NewSaver creates a saver rooted at dir. An empty dir disables saving.
func NewSaver(dir string) *Saver {
	return &Saver{
		dir:   dir,
		once:  make(map[string]bool),
		hash:  make(map[string]*goimagehash.ImageHash),
		clock: time.Now,
	}
}

func (s *Saver) enabled() bool {
	return s != nil && s.dir != ""
}

// SaveOnce writes the crop the first time the kind/name key is seen.
// Later calls for the same key are dropped.
func (s *Saver) SaveOnce(kind, name string, img image.Image) (string, bool) {
	if !s.enabled() {
		return "", false
	}
	key := kind + ":" + name
	if s.once[key] {
		return "", false
	}
	path, err := s.write(kind, name, img)
	if err != nil {
		slog.Warn("failed to save region crop", "key", key, "error", err)
		return "", false
	}
	s.once[key] = true
	return path, true
}

// SaveHit writes the crop that triggered a hit, skipping perceptual
// repeats of the previous hit for the same key.
func (s *Saver) SaveHit(kind, name string, img image.Image) (string, bool) {
	if !s.enabled() {
		return "", false
	}
	key := kind + ":" + name

	hash, err := goimagehash.PerceptionHash(img)
	if err == nil && s.hash[key] != nil {
		if dist, err := s.hash[key].Distance(hash); err == nil && dist <= MaxDuplicateDistance {
			slog.Debug("skipping duplicate hit crop", "key", key, "distance", dist)
			return "", false
		}
	}

	path, werr := s.write(kind, name, img)
	if werr != nil {
		slog.Warn("failed to save hit crop", "key", key, "error", werr)
		return "", false
	}
	if err == nil {
		s.hash[key] = hash
	}
	return path, true
}

func (s *Saver) write(kind, name string, img image.Image) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}

	b := img.Bounds()
	file := fmt.Sprintf("%d_%s_%s_%dx%d.bmp", s.clock().UnixMilli(), safeName(kind), safeName(name), b.Dx(), b.Dy())
	path := filepath.Join(s.dir, file)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := bmp.Encode(f, img); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// safeName keeps filenames portable across filesystems.
func safeName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		return "unnamed"
	}
	return sb.String()
}
