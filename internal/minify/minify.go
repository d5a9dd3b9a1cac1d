// Package minify strips comments and insignificant whitespace from Lua
// source without parsing it. Quoted literals are scanned with the same rules
// as package literal; long-bracket strings are copied verbatim and long
// comments are dropped. Newlines are kept (collapsed to one) so statements
// that rely on line breaks keep their meaning.
package minify

import (
	"strings"

	"luaobf/internal/literal"
)

// Minify returns src without comments, with runs of blanks collapsed to a
// single space and runs of line breaks collapsed to a single newline.
// Minify(Minify(s)) == Minify(s) for every input.
func Minify(src string) string {
	var w writer
	w.b.Grow(len(src))
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '-' && i+1 < len(src) && src[i+1] == '-':
			i = skipComment(src, i+2, &w)
		case literal.IsQuote(c):
			end, closed := literal.ScanQuoted(src, i)
			if closed {
				end++
			}
			w.token(src[i:end])
			i = end
		case c == '[':
			if level, body, ok := literal.LongBracket(src, i); ok {
				end := literal.CloseLongBracket(src, body, level)
				w.token(src[i:end])
				i = end
				continue
			}
			w.token(src[i : i+1])
			i++
		case c == '\n':
			w.newline = true
			i++
		case isBlank(c):
			w.space = true
			i++
		default:
			j := i + 1
			for j < len(src) && !isSpecial(src[j]) {
				j++
			}
			w.token(src[i:j])
			i = j
		}
	}
	return w.b.String()
}

// skipComment consumes a comment whose "--" ends just before from.
func skipComment(src string, from int, w *writer) int {
	if level, body, ok := literal.LongBracket(src, from); ok {
		w.space = true
		return literal.CloseLongBracket(src, body, level)
	}
	if j := strings.IndexByte(src[from:], '\n'); j >= 0 {
		return from + j
	}
	return len(src)
}

type writer struct {
	b       strings.Builder
	space   bool
	newline bool
}

// token writes s after the pending separator, if any.
func (w *writer) token(s string) {
	if w.b.Len() > 0 {
		switch {
		case w.newline:
			w.b.WriteByte('\n')
		case w.space:
			w.b.WriteByte(' ')
		}
	}
	w.space, w.newline = false, false
	w.b.WriteString(s)
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\v' || c == '\f'
}

func isSpecial(c byte) bool {
	return c == '-' || c == '[' || c == '\n' || literal.IsQuote(c) || isBlank(c)
}
