package literal

import (
	"strconv"
	"strings"
)

// Literal is one quoted constant lifted out of the source.
type Literal struct {
	Index  int    // dense, 0-based, in order of occurrence
	Quote  byte   // opening quote character
	Raw    string // bytes between the quotes, exactly as written
	Closed bool   // false when the scan hit end of text first
	Value  []byte // Raw with Lua escapes decoded
}

// Source renders the literal back to the text it was scanned from.
func (l Literal) Source() string {
	if l.Closed {
		return string(l.Quote) + l.Raw + string(l.Quote)
	}
	return string(l.Quote) + l.Raw
}

// Part is either a run of code text or a reference to a literal.
// Lit is -1 for text parts.
type Part struct {
	Text string
	Lit  int
}

// Template is code with every literal replaced by a typed placeholder.
type Template struct {
	Parts []Part
}

// Extraction is the result of Extract.
type Extraction struct {
	Code     Template
	Literals []Literal
}

// Extract scans src for quoted literals and returns the code template and
// the ordered literal list.
func Extract(src string) Extraction {
	var (
		parts []Part
		lits  []Literal
		text  strings.Builder
	)
	flush := func() {
		if text.Len() > 0 {
			parts = append(parts, Part{Text: text.String(), Lit: -1})
			text.Reset()
		}
	}
	for i := 0; i < len(src); {
		c := src[i]
		if !IsQuote(c) {
			text.WriteByte(c)
			i++
			continue
		}
		end, closed := ScanQuoted(src, i)
		raw := src[i+1 : end]
		idx := len(lits)
		lits = append(lits, Literal{
			Index:  idx,
			Quote:  c,
			Raw:    raw,
			Closed: closed,
			Value:  Unescape(raw),
		})
		flush()
		parts = append(parts, Part{Lit: idx})
		i = end + 1
	}
	flush()
	return Extraction{Code: Template{Parts: parts}, Literals: lits}
}

// String renders the template with LIT(index) placeholders.
func (t Template) String() string {
	var b strings.Builder
	for _, p := range t.Parts {
		if p.Lit < 0 {
			b.WriteString(p.Text)
			continue
		}
		b.WriteString("LIT(")
		b.WriteString(strconv.Itoa(p.Lit))
		b.WriteString(")")
	}
	return b.String()
}

// Restore renders the template with the original literal text, reproducing
// the scanned source byte for byte.
func (t Template) Restore(lits []Literal) string {
	var b strings.Builder
	for _, p := range t.Parts {
		if p.Lit < 0 {
			b.WriteString(p.Text)
			continue
		}
		b.WriteString(lits[p.Lit].Source())
	}
	return b.String()
}

// Render replaces every placeholder with a call fn(index). A call that would
// follow a name or a closing bracket directly (Lua call sugar such as
// print "x" or f{}"x") is wrapped in parentheses so it stays a call
// argument.
func (t Template) Render(fn string) string {
	var (
		b    strings.Builder
		last byte
	)
	for _, p := range t.Parts {
		if p.Lit < 0 {
			b.WriteString(p.Text)
			if trimmed := strings.TrimRight(p.Text, " \t\n"); trimmed != "" {
				last = trimmed[len(trimmed)-1]
			}
			continue
		}
		call := fn + "(" + strconv.Itoa(p.Lit) + ")"
		if IsIdentByte(last) || last == ')' || last == ']' || last == '}' {
			call = "(" + call + ")"
		}
		b.WriteString(call)
		last = ')'
	}
	return b.String()
}

// Idents returns every identifier-shaped word of the code text, literals
// excluded, in first-seen order.
func (t Template) Idents() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, p := range t.Parts {
		if p.Lit >= 0 {
			continue
		}
		s := p.Text
		for i := 0; i < len(s); {
			if !IsIdentByte(s[i]) {
				i++
				continue
			}
			j := i
			for j < len(s) && IsIdentByte(s[j]) {
				j++
			}
			w := s[i:j]
			if w[0] < '0' || w[0] > '9' {
				if _, ok := seen[w]; !ok {
					seen[w] = struct{}{}
					out = append(out, w)
				}
			}
			i = j
		}
	}
	return out
}
