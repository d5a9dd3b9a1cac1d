// Package ziputil writes ZIP entries with fixed timestamps and modes so
// archives are byte-for-byte reproducible.
package ziputil

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// FixedZipTime is the timestamp of every entry (1980-01-01 UTC, the ZIP epoch).
var FixedZipTime = time.Unix(315532800, 0).UTC()

const (
	ModeFile fs.FileMode = 0o644
	ModeExec fs.FileMode = 0o755
)

// SanitizePath turns p into a root-relative entry name: forward slashes, no
// drive letter, "." and ".." resolved without climbing above the root.
func SanitizePath(p string) string {
	s := filepath.ToSlash(p)
	if len(s) > 1 && s[1] == ':' {
		s = s[2:]
	}
	s = strings.TrimPrefix(path.Clean("/"+s), "/")
	if s == "" {
		return "entry"
	}
	return s
}

func create(zw *zip.Writer, name string, mode fs.FileMode) (io.Writer, error) {
	h := &zip.FileHeader{Name: SanitizePath(name), Method: zip.Deflate, Modified: FixedZipTime}
	h.SetMode(mode)
	w, err := zw.CreateHeader(h)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	return w, nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(zw *zip.Writer, name string, v any) error {
	w, err := create(zw, name, ModeFile)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// WriteText writes data as a regular file entry.
func WriteText(zw *zip.Writer, name string, data []byte) error {
	return WriteMode(zw, name, data, ModeFile)
}

// WriteMode writes data with the given permission bits, e.g. ModeExec for a
// script that starts with a shebang line.
func WriteMode(zw *zip.Writer, name string, data []byte, mode fs.FileMode) error {
	w, err := create(zw, name, mode)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
