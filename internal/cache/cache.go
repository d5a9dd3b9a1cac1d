// Package cache keeps the build index used by incremental directory builds.
//
// The index lives at <dir>/index.json and records, per source, the content
// hash of the input and of the artifact written for it, plus a key of the
// options in effect. A source is rebuilt when any of them changes or the
// artifact on disk no longer matches.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
)

// FormatVersion versions the index schema; older indexes are discarded.
const FormatVersion = "1"

const (
	// DirName is the index directory created inside an output root.
	DirName       = ".luaobf"
	indexFileName = "index.json"
)

// Entry is one built source.
type Entry struct {
	Path       string `json:"path"`
	SourceHash string `json:"source"`
	OutputHash string `json:"output"`
}

// Index is the persisted state of the previous build.
type Index struct {
	FormatVersion string  `json:"formatVersion"`
	Tool          string  `json:"tool"`
	OptionsKey    string  `json:"options"`
	Entries       []Entry `json:"entries"`

	byPath map[string]int
}

// New returns an empty index for the given tool and options key.
func New(tool, optionsKey string) *Index {
	return &Index{FormatVersion: FormatVersion, Tool: tool, OptionsKey: optionsKey}
}

// Hash returns the lowercase hex sha256 of b.
func Hash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Key hashes the JSON form of v. It is used to fingerprint build options.
func Key(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return Hash(b), nil
}

// Load reads <dir>/index.json. A missing file yields (nil, nil) so callers
// can treat it as "no previous build".
func Load(dir string) (*Index, error) {
	b, err := os.ReadFile(filepath.Join(dir, indexFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(b, &idx); err != nil {
		return nil, err
	}
	if idx.FormatVersion != FormatVersion {
		return nil, nil
	}
	return &idx, nil
}

// Save writes the index atomically: readers never see a partial file.
func Save(dir string, idx *Index) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	sort.Slice(idx.Entries, func(i, j int) bool { return idx.Entries[i].Path < idx.Entries[j].Path })
	idx.byPath = nil
	f, err := os.CreateTemp(dir, ".tmp-"+indexFileName+"-")
	if err != nil {
		return err
	}
	tmp := f.Name()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(idx); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, indexFileName))
}

// Compatible reports whether entries recorded under prev may be reused for a
// build with the given tool and options key.
func (idx *Index) Compatible(tool, optionsKey string) bool {
	return idx != nil && idx.Tool == tool && idx.OptionsKey == optionsKey
}

// Lookup returns the entry recorded for path.
func (idx *Index) Lookup(path string) (Entry, bool) {
	if idx == nil {
		return Entry{}, false
	}
	if idx.byPath == nil {
		idx.byPath = make(map[string]int, len(idx.Entries))
		for i, e := range idx.Entries {
			idx.byPath[e.Path] = i
		}
	}
	i, ok := idx.byPath[path]
	if !ok {
		return Entry{}, false
	}
	return idx.Entries[i], true
}

// Put records or replaces the entry for e.Path.
func (idx *Index) Put(e Entry) {
	if _, ok := idx.Lookup(e.Path); ok {
		idx.Entries[idx.byPath[e.Path]] = e
		return
	}
	idx.byPath[e.Path] = len(idx.Entries)
	idx.Entries = append(idx.Entries, e)
}

// Fresh reports whether the artifact at outPath can be reused for a source
// with the given hash.
func (idx *Index) Fresh(path, sourceHash, outPath string) bool {
	e, ok := idx.Lookup(path)
	if !ok || e.SourceHash != sourceHash {
		return false
	}
	b, err := os.ReadFile(outPath)
	if err != nil {
		return false
	}
	return Hash(b) == e.OutputHash
}
