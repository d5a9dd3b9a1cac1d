// Package textutil holds small source-normalisation helpers applied before
// the pipeline looks at a program.
package textutil

import (
	"bytes"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// NormalizeLF converts CRLF and lone CR to LF. Bytes are otherwise left
// untouched: Lua strings may legitimately carry non-UTF-8 data.
func NormalizeLF(b []byte) []byte {
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(b, []byte("\r"), []byte("\n"))
}

// StripBOM removes a leading UTF-8 byte order mark.
func StripBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, utf8BOM)
}

// SplitShebang separates a leading "#!" line from the rest of the source.
// Lua skips that line when loading a file but not when loading a string, so
// it must not reach the packed program.
func SplitShebang(s string) (shebang, rest string) {
	if !strings.HasPrefix(s, "#") {
		return "", s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

// Source runs the full normalisation chain and returns the program text plus
// any shebang line that was dropped.
func Source(b []byte) (text, shebang string) {
	b = NormalizeLF(StripBOM(b))
	return SplitShebangBytes(b)
}

// SplitShebangBytes is SplitShebang for byte slices.
func SplitShebangBytes(b []byte) (string, string) {
	sb, rest := SplitShebang(string(b))
	return rest, sb
}

// EnsureTrailingLF appends a single \n if not already present.
func EnsureTrailingLF(s string) string {
	if s == "" || s[len(s)-1] == '\n' {
		return s
	}
	return s + "\n"
}
