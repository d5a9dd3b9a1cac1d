package stage

import (
	"strconv"
	"strings"
)

// Quote renders b as a double-quoted Lua string literal. Bytes outside
// printable ASCII use three-digit decimal escapes so a following digit can
// never extend them.
func Quote(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b) + 2)
	sb.WriteByte('"')
	for _, c := range b {
		switch {
		case c == '"' || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c == '\n':
			sb.WriteString(`\n`)
		case c < 0x20 || c >= 0x7f:
			sb.WriteByte('\\')
			s := strconv.Itoa(int(c))
			sb.WriteString(strings.Repeat("0", 3-len(s)))
			sb.WriteString(s)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// longList renders strings as a comma-separated list of [[...]] literals.
// Callers only pass radix-64 text, which never contains "]]".
func longList(items []string) string {
	var sb strings.Builder
	for i, s := range items {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("[[")
		sb.WriteString(s)
		sb.WriteString("]]")
	}
	return sb.String()
}

func intList[T ~int | ~uint8 | ~uint32](items []T) string {
	var sb strings.Builder
	for i, v := range items {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatUint(uint64(v), 10))
	}
	return sb.String()
}

func u32(v uint32) string { return strconv.FormatUint(uint64(v), 10) }
