// Package bundle writes the reproducible artifact archive:
//
//	README.md       # stable description, no wall-clock data
//	manifest.json   # build id, options, digests, piece and literal counts
//	minify.patch    # unified diff from the normalised source to minified code
//	obfuscated.lua  # the artifact
//
// Entries are written in path order with fixed timestamps, so the same
// inputs always give the same bytes.
package bundle

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"luaobf/internal/diff"
	"luaobf/internal/digest"
	"luaobf/internal/options"
	"luaobf/internal/ziputil"
)

const (
	ArtifactName = "obfuscated.lua"
	ManifestName = "manifest.json"
	PatchName    = "minify.patch"
	ReadmeName   = "README.md"
)

// File describes one archive entry in the manifest.
type File struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Bytes  int    `json:"bytes"`
}

// Manifest summarises one build.
type Manifest struct {
	Tool         string          `json:"tool"`
	BuildID      string          `json:"buildId"`
	GateID       string          `json:"gateId,omitempty"`
	Options      options.Options `json:"options"`
	Program      digest.Digest   `json:"programDigest"`
	Stage2       digest.Digest   `json:"stage2Digest"`
	Stage1Pieces int             `json:"stage1Pieces"`
	Stage2Pieces int             `json:"stage2Pieces"`
	Literals     int             `json:"literals"`
	Files        []File          `json:"files"`
}

// Bundle is a manifest plus the entry bodies it describes.
type Bundle struct {
	Manifest Manifest
	entries  map[string][]byte
}

// New assembles the bundle entries and fills Manifest.Files. source is the
// normalised input and minified the text the extractor saw.
func New(m Manifest, artifact, source, minified string, diffOpt diff.Options) Bundle {
	patch := diff.Unified("source.lua", "minified.lua", []byte(source), []byte(minified), diffOpt)
	b := Bundle{Manifest: m, entries: map[string][]byte{
		ArtifactName: []byte(artifact),
		PatchName:    []byte(patch.Body),
	}}
	b.entries[ReadmeName] = readme(m, patch)

	b.Manifest.Files = b.Manifest.Files[:0:0]
	for name, body := range b.entries {
		sum := sha256.Sum256(body)
		b.Manifest.Files = append(b.Manifest.Files, File{Path: name, SHA256: hex.EncodeToString(sum[:]), Bytes: len(body)})
	}
	sort.Slice(b.Manifest.Files, func(i, j int) bool { return b.Manifest.Files[i].Path < b.Manifest.Files[j].Path })
	return b
}

// Entry returns the body of a named entry.
func (b Bundle) Entry(name string) ([]byte, bool) {
	body, ok := b.entries[name]
	return body, ok
}

// Write streams the archive to w.
func (b Bundle) Write(w io.Writer) error {
	zw := zip.NewWriter(w)
	names := make([]string, 0, len(b.entries)+1)
	for name := range b.entries {
		names = append(names, name)
	}
	names = append(names, ManifestName)
	sort.Strings(names)

	for _, name := range names {
		var err error
		switch body := b.entries[name]; {
		case name == ManifestName:
			err = ziputil.WriteJSON(zw, name, b.Manifest)
		case name == ArtifactName && bytes.HasPrefix(body, []byte("#!")):
			err = ziputil.WriteMode(zw, name, body, ziputil.ModeExec)
		default:
			err = ziputil.WriteText(zw, name, body)
		}
		if err != nil {
			zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

// WriteFile writes the archive to path, creating parent directories.
func (b Bundle) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir output: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := b.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
