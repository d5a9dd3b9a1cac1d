// Package validate performs lightweight validation of generation options
// and bundle manifests. It checks structural and semantic constraints and
// aggregates every issue into a single error.
package validate

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"luaobf/internal/bundle"
	"luaobf/internal/digest"
	"luaobf/internal/options"
	"luaobf/internal/pack"
)

// Options rejects option values too malformed to clamp:
//
//   - integrity must be strict or lenient
//   - permutation must be explicit or seeded
//   - a gated build needs an absolute http(s) gate URL
//
// Counts are not checked here; options.Normalize clamps them. The returned
// error wraps options.ErrInvalid.
func Options(o options.Options) error {
	var errs errlist

	if _, err := digest.ParsePolicy(string(o.Integrity)); err != nil {
		errs.add("integrity: %v", err)
	}
	if _, err := pack.ParseMode(string(o.Permutation)); err != nil {
		errs.add("permutation: %v", err)
	}
	if o.RemoteGate && o.GateURL != "" {
		u, err := url.Parse(o.GateURL)
		switch {
		case err != nil:
			errs.add("gateUrl: %v", err)
		case u.Scheme != "http" && u.Scheme != "https":
			errs.add("gateUrl: scheme must be http or https (got %q)", u.Scheme)
		case u.Host == "":
			errs.add("gateUrl: host must be non-empty")
		}
	}
	if strings.ContainsAny(o.GateID, "\x00\n") {
		errs.add("gateId: must not contain NUL or newline")
	}

	if err := errs.err(); err != nil {
		return fmt.Errorf("%w: %v", options.ErrInvalid, err)
	}
	return nil
}

// Manifest validates a bundle manifest:
//
//   - Tool and BuildID are non-empty; BuildID is a UUID.
//   - Shipped piece counts match what the packer produces for the digested
//     lengths and the requested counts.
//   - Each file has a normalized relative path (no absolute, no "..", no
//     backslash), a sha256 hex hash and no duplicate.
//   - Files are sorted by path so the archive is reproducible.
func Manifest(m bundle.Manifest) error {
	var errs errlist

	if strings.TrimSpace(m.Tool) == "" {
		errs.add("manifest.tool must be non-empty")
	}
	if _, err := uuid.Parse(m.BuildID); err != nil {
		errs.add("manifest.buildId must be a UUID (got %q)", m.BuildID)
	}
	// The program is split raw into stage-2 chunks; stage-2 is split as
	// radix-64 text into stage-1 pieces.
	want1 := pack.Stage1Bounds.Count(base64.StdEncoding.EncodedLen(int(m.Stage2.Length)), m.Options.Stage1Pieces)
	if m.Stage1Pieces < 1 || m.Stage1Pieces != want1 {
		errs.add("manifest.stage1Pieces must be %d for a %d-byte stage-2 (got %d)", want1, m.Stage2.Length, m.Stage1Pieces)
	}
	want2 := pack.Stage2Bounds.Count(int(m.Program.Length), m.Options.Stage2Pieces)
	if m.Stage2Pieces != want2 {
		errs.add("manifest.stage2Pieces must be %d for a %d-byte program (got %d)", want2, m.Program.Length, m.Stage2Pieces)
	}
	if m.Literals < 0 {
		errs.add("manifest.literals must be >= 0 (got %d)", m.Literals)
	}

	seen := make(map[string]struct{}, len(m.Files))
	for i, f := range m.Files {
		prefix := fmt.Sprintf("files[%d] (%s)", i, f.Path)
		if f.Path == "" {
			errs.add("%s: path must be non-empty", prefix)
		} else {
			if filepath.IsAbs(f.Path) || strings.HasPrefix(f.Path, "/") {
				errs.add("%s: path must be relative, got %q", prefix, f.Path)
			}
			if strings.Contains(f.Path, `\`) {
				errs.add("%s: path must use forward slashes ('/'), found backslash", prefix)
			}
			if hasDotDot(f.Path) {
				errs.add("%s: path must not contain '..' segments (got %q)", prefix, f.Path)
			}
		}
		if _, dup := seen[f.Path]; dup {
			errs.add("%s: duplicate file path %q", prefix, f.Path)
		} else if f.Path != "" {
			seen[f.Path] = struct{}{}
		}
		if !reHex64.MatchString(f.SHA256) {
			errs.add("%s: sha256 must be 64 lowercase hex chars, got %q", prefix, f.SHA256)
		}
		if f.Bytes < 0 {
			errs.add("%s: bytes must be >= 0 (got %d)", prefix, f.Bytes)
		}
	}
	if !sort.SliceIsSorted(m.Files, func(i, j int) bool { return m.Files[i].Path < m.Files[j].Path }) {
		errs.add("manifest.files should be sorted by path for deterministic bundles")
	}

	return errs.err()
}

// --- helpers -----------------------------------------------------------------

var reHex64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

func hasDotDot(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// errlist aggregates multiple validation issues into a single error.
type errlist struct {
	msgs []string
}

func (e *errlist) add(format string, args ...any) {
	e.msgs = append(e.msgs, fmt.Sprintf(format, args...))
}

func (e *errlist) err() error {
	if len(e.msgs) == 0 {
		return nil
	}
	return errors.New(strings.Join(e.msgs, "\n"))
}
