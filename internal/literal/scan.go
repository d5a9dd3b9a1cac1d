// Package literal implements the lexical literal extractor. It is a
// best-effort scanner, not a Lua parser: it matches single and double quoted
// spans honouring backslash escapes and nothing else. Long brackets, nested
// quoting inside long strings and any grammar context are not tracked, so a
// quote character inside a [[long string]] is scanned as the start of a
// literal. Callers must treat that as a known limitation of the input they
// accept.
package literal

// IsQuote reports whether c opens a quoted literal.
func IsQuote(c byte) bool { return c == '"' || c == '\'' }

// ScanQuoted scans the quoted span opening at s[start]. It returns the index
// of the closing quote and true, or len(s) and false when the span is never
// closed. A backslash always escapes the following byte.
func ScanQuoted(s string, start int) (end int, closed bool) {
	q := s[start]
	esc := false
	for j := start + 1; j < len(s); j++ {
		c := s[j]
		switch {
		case esc:
			esc = false
		case c == '\\':
			esc = true
		case c == q:
			return j, true
		}
	}
	return len(s), false
}

// LongBracket reports whether s[i:] opens a long bracket ("[[", "[=[", ...)
// and returns its level (number of '=') and the index just past the opener.
func LongBracket(s string, i int) (level, body int, ok bool) {
	if i >= len(s) || s[i] != '[' {
		return 0, 0, false
	}
	j := i + 1
	for j < len(s) && s[j] == '=' {
		j++
	}
	if j < len(s) && s[j] == '[' {
		return j - i - 1, j + 1, true
	}
	return 0, 0, false
}

// CloseLongBracket finds the closing bracket of the given level starting at
// from and returns the index just past it, or len(s) when it is missing.
func CloseLongBracket(s string, from, level int) int {
	for j := from; j < len(s); j++ {
		if s[j] != ']' {
			continue
		}
		k := j + 1
		for k < len(s) && s[k] == '=' {
			k++
		}
		if k-j-1 == level && k < len(s) && s[k] == ']' {
			return k + 1
		}
	}
	return len(s)
}

// IsIdentByte reports whether c may appear inside a Lua identifier.
func IsIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
