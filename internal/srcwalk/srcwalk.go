// Package srcwalk collects the Lua sources of a directory tree for batch
// obfuscation. The walk is deterministic (results sorted by relative path)
// and honours a root .gitignore, name-prefix excludes and a per-file size
// limit.
package srcwalk

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// DefaultExts are the extensions collected when Config.Exts is empty.
var DefaultExts = []string{".lua", ".luau"}

// DefaultExclude are base-name prefixes skipped when Config.Exclude is nil.
var DefaultExclude = []string{".git", "node_modules", "dist", "build"}

// File is one collected source.
type File struct {
	RelPath string // forward slashes, relative to the root
	AbsPath string
	Size    int64
}

// Config controls Collect.
type Config struct {
	Root           string
	Exts           []string
	Exclude        []string
	MaxFileBytes   int64 // 0 = no limit
	UseGitignore   bool
	FollowSymlinks bool
}

type walkState struct {
	cfg      Config
	root     string
	exts     map[string]struct{}
	patterns []gitPattern
	files    []File
}

// Collect walks cfg.Root and returns the matching files sorted by path.
func Collect(cfg Config) ([]File, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, err
	}
	if cfg.Exclude == nil {
		cfg.Exclude = DefaultExclude
	}
	exts := cfg.Exts
	if len(exts) == 0 {
		exts = DefaultExts
	}
	ws := &walkState{cfg: cfg, root: root, exts: map[string]struct{}{}}
	for _, e := range exts {
		ws.exts[strings.ToLower(e)] = struct{}{}
	}
	if cfg.UseGitignore {
		// A missing .gitignore simply means no patterns.
		ws.patterns, _ = parseGitignore(filepath.Join(root, ".gitignore"))
	}
	if err := filepath.WalkDir(root, ws.visit); err != nil {
		return nil, err
	}
	sort.Slice(ws.files, func(i, j int) bool { return ws.files[i].RelPath < ws.files[j].RelPath })
	return ws.files, nil
}

func (ws *walkState) visit(path string, d fs.DirEntry, err error) error {
	if err != nil {
		return nil
	}
	rel, err := filepath.Rel(ws.root, path)
	if err != nil || rel == "." {
		return nil
	}
	rel = filepath.ToSlash(rel)
	if ws.skip(rel, d) {
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	}
	if isSymlink(d) && !ws.cfg.FollowSymlinks {
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	}
	if d.IsDir() {
		return nil
	}
	if _, ok := ws.exts[strings.ToLower(filepath.Ext(path))]; !ok {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}
	if ws.cfg.MaxFileBytes > 0 && info.Size() > ws.cfg.MaxFileBytes {
		return nil
	}
	ws.files = append(ws.files, File{RelPath: rel, AbsPath: path, Size: info.Size()})
	return nil
}

func (ws *walkState) skip(rel string, d fs.DirEntry) bool {
	base := filepath.Base(rel)
	for _, prefix := range ws.cfg.Exclude {
		if prefix != "" && strings.HasPrefix(base, prefix) {
			return true
		}
	}
	return matchGitignore(ws.patterns, rel, d.IsDir())
}

func isSymlink(d fs.DirEntry) bool {
	return d.Type()&fs.ModeSymlink != 0
}

// ---------------- .gitignore support ----------------

type gitPattern struct {
	neg     bool
	dirOnly bool
	rx      *regexp.Regexp
}

// parseGitignore compiles the patterns of a .gitignore file. Supported:
// comments, '!' negation, leading '/' anchoring, trailing '/' for
// directories, '**' across directories, '*' and '?' within one segment.
func parseGitignore(path string) ([]gitPattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var res []gitPattern
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var p gitPattern
		if strings.HasPrefix(line, "!") {
			p.neg = true
			line = strings.TrimSpace(line[1:])
		}
		if strings.HasSuffix(line, "/") {
			p.dirOnly = true
			line = strings.TrimSuffix(line, "/")
		}
		anchored := strings.HasPrefix(line, "/")
		line = strings.TrimPrefix(line, "/")
		if line == "" {
			continue
		}
		p.rx = compileGlob(line, anchored)
		res = append(res, p)
	}
	return res, s.Err()
}

func compileGlob(glob string, anchored bool) *regexp.Regexp {
	esc := regexp.QuoteMeta(glob)
	esc = strings.ReplaceAll(esc, `\*\*`, "\x00")
	esc = strings.ReplaceAll(esc, `\*`, "[^/]*")
	esc = strings.ReplaceAll(esc, `\?`, "[^/]")
	esc = strings.ReplaceAll(esc, "\x00", ".*")
	if anchored {
		return regexp.MustCompile("^" + esc + "$")
	}
	return regexp.MustCompile("(^|.*/)" + esc + "$")
}

// matchGitignore applies patterns in order; the last match wins.
func matchGitignore(pats []gitPattern, rel string, isDir bool) bool {
	ignored := false
	for _, p := range pats {
		if p.dirOnly && !isDir {
			continue
		}
		if p.rx.MatchString(rel) {
			ignored = !p.neg
		}
	}
	return ignored
}
