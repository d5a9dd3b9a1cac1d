package literal

import "unicode/utf8"

// Unescape decodes the Lua escape sequences in raw, the text between the
// quotes of a literal. Malformed sequences decode leniently: an unknown
// escape yields the escaped byte, an overlong decimal escape is truncated to
// a byte, and a trailing lone backslash is kept.
func Unescape(raw string) []byte {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		if i+1 >= len(raw) {
			out = append(out, c)
			break
		}
		i++
		switch e := raw[i]; e {
		case 'a':
			out = append(out, '\a')
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'v':
			out = append(out, '\v')
		case '\n':
			out = append(out, '\n')
		case 'x':
			if i+2 < len(raw) && isHex(raw[i+1]) && isHex(raw[i+2]) {
				out = append(out, hexVal(raw[i+1])<<4|hexVal(raw[i+2]))
				i += 2
			} else {
				out = append(out, 'x')
			}
		case 'z':
			for i+1 < len(raw) && isSpace(raw[i+1]) {
				i++
			}
		case 'u':
			r, n := unicodeEscape(raw[i+1:])
			if n == 0 {
				out = append(out, 'u')
				continue
			}
			out = utf8.AppendRune(out, r)
			i += n
		default:
			if e >= '0' && e <= '9' {
				v, n := 0, 0
				for n < 3 && i+n < len(raw) && raw[i+n] >= '0' && raw[i+n] <= '9' {
					v = v*10 + int(raw[i+n]-'0')
					n++
				}
				out = append(out, byte(v))
				i += n - 1
				continue
			}
			out = append(out, e)
		}
	}
	return out
}

// unicodeEscape parses "{XXXX}" and returns the rune and the bytes consumed.
func unicodeEscape(s string) (rune, int) {
	if len(s) < 3 || s[0] != '{' {
		return 0, 0
	}
	var r rune
	for j := 1; j < len(s); j++ {
		c := s[j]
		if c == '}' {
			if j == 1 || r > utf8.MaxRune {
				return 0, 0
			}
			return r, j + 1
		}
		if !isHex(c) {
			return 0, 0
		}
		r = r<<4 | rune(hexVal(c))
		if r > utf8.MaxRune {
			return 0, 0
		}
	}
	return 0, 0
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}
