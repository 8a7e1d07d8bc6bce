// Package templates loads and resolves versioned digit template sets for
// the health-number detector. A set carries one glyph bitmap per digit,
// all at the same dimensions. Sets come from JSON files in the template
// directory or inline from a profile's templates block.
package templates

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/hudpulse/hudpulse/internal/detect"
	"github.com/hudpulse/hudpulse/internal/errors"
	"github.com/hudpulse/hudpulse/internal/profile"
)

// Set is one resolved template set, ready for matching.
type Set struct {
	ID     string
	Glyphs detect.DigitSet
}

// Store holds every known template set by id.
type Store struct {
	sets map[string]*Set
}

// New returns an empty store.
func New() *Store {
	return &Store{sets: make(map[string]*Set)}
}

// Put registers a set, replacing any existing set with the same id.
func (s *Store) Put(set *Set) {
	s.sets[set.ID] = set
}

// IDs lists the known set ids sorted.
func (s *Store) IDs() []string {
	ids := lo.Keys(s.sets)
	sort.Strings(ids)
	return ids
}

// Resolve returns the set with the given id. A miss is a
// template_set_unresolved error; profiles that depend on it are rejected
// at load, never silently skipped at runtime.
func (s *Store) Resolve(id string) (*Set, error) {
	set, ok := s.sets[id]
	if !ok {
		return nil, errors.Newf(errors.CodeTemplateSetUnresolved, "template set %q not found (known: %v)", id, s.IDs())
	}
	return set, nil
}

// ResolveRef resolves a profile template reference: inline digits win,
// otherwise the referenced set id is looked up.
func (s *Store) ResolveRef(ref *profile.TemplateRef) (*Set, error) {
	if ref.Inline() {
		return BuildInline(ref)
	}
	return s.Resolve(ref.SetID)
}

// LoadDir reads every *.json set file in dir into a store. A missing
// directory yields an empty store so inline-template profiles still load;
// a malformed set file is an error naming the file.
func LoadDir(dir string) (*Store, error) {
	s := New()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, errors.Wrapf(err, errors.CodeTemplateSetUnresolved, "reading template dir %s", dir)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		set, err := loadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeTemplateSetUnresolved, "template set file %s", path)
		}
		s.Put(set)
	}
	return s, nil
}

type setFile struct {
	ID     string         `json:"template_set_id"`
	Width  int            `json:"width"`
	Height int            `json:"height"`
	Digits map[string]any `json:"digits"`
}

func loadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f setFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.ID == "" {
		f.ID = strings.TrimSuffix(filepath.Base(path), ".json")
	}
	return build(f.ID, f.Width, f.Height, f.Digits)
}

// BuildInline builds a set from a profile templates block.
func BuildInline(ref *profile.TemplateRef) (*Set, error) {
	id := ref.SetID
	if id == "" {
		id = "inline"
	}
	set, err := build(id, ref.Width, ref.Height, ref.Digits)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeTemplateSetUnresolved, "inline template set %q", id)
	}
	return set, nil
}

func build(id string, w, h int, digits map[string]any) (*Set, error) {
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("glyph dimensions must be positive, got %dx%d", w, h)
	}

	set := &Set{ID: id, Glyphs: detect.DigitSet{W: w, H: h}}
	for d := 0; d < 10; d++ {
		key := string(rune('0' + d))
		raw, ok := digits[key]
		if !ok {
			return nil, fmt.Errorf("digit %q missing", key)
		}
		bits, err := parseBits(raw, w*h)
		if err != nil {
			return nil, fmt.Errorf("digit %q: %w", key, err)
		}
		set.Glyphs.Glyphs[d] = detect.Bitmap{W: w, H: h, Bits: bits}
	}
	return set, nil
}

// parseBits accepts the two stored glyph forms: a bit string ("0110...")
// or an array of 0/1 numbers, row-major either way.
func parseBits(raw any, n int) ([]uint8, error) {
	switch v := raw.(type) {
	case string:
		if len(v) != n {
			return nil, fmt.Errorf("bit string length %d, want %d", len(v), n)
		}
		bits := make([]uint8, n)
		for i := 0; i < n; i++ {
			switch v[i] {
			case '0':
			case '1':
				bits[i] = 1
			default:
				return nil, fmt.Errorf("bit string has %q at %d", v[i], i)
			}
		}
		return bits, nil
	case []any:
		if len(v) != n {
			return nil, fmt.Errorf("bit array length %d, want %d", len(v), n)
		}
		bits := make([]uint8, n)
		for i, e := range v {
			f, ok := e.(float64)
			if !ok || (f != 0 && f != 1) {
				return nil, fmt.Errorf("bit array has %v at %d", e, i)
			}
			bits[i] = uint8(f)
		}
		return bits, nil
	default:
		return nil, fmt.Errorf("unsupported glyph encoding %T", raw)
	}
}
