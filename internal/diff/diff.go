// Package diff produces unified patches with github.com/pmezard/go-difflib.
// The bundle uses it to show what minification changed in a source.
package diff

import (
	"fmt"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// Options controls patch generation.
type Options struct {
	// MaxBytes caps len(a)+len(b); larger inputs get a placeholder patch.
	// 0 means no limit.
	MaxBytes int
	// Context lines around each hunk; 0 means 3.
	Context int
}

// Patch is a unified diff plus line counts.
type Patch struct {
	Body     string
	Oversize bool
	Removed  int // lines only in a
	Added    int // lines only in b
}

// Unified diffs a against b. Identical inputs give an empty Body.
func Unified(aName, bName string, a, b []byte, opt Options) Patch {
	if opt.MaxBytes > 0 && len(a)+len(b) > opt.MaxBytes {
		return Patch{Body: omitted(aName, bName), Oversize: true}
	}
	ctx := opt.Context
	if ctx <= 0 {
		ctx = 3
	}
	al, bl := lines(string(a)), lines(string(b))
	var p Patch
	for _, op := range difflib.NewMatcher(al, bl).GetOpCodes() {
		switch op.Tag {
		case 'r':
			p.Removed += op.I2 - op.I1
			p.Added += op.J2 - op.J1
		case 'd':
			p.Removed += op.I2 - op.I1
		case 'i':
			p.Added += op.J2 - op.J1
		}
	}
	body, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        al,
		B:        bl,
		FromFile: aName,
		ToFile:   bName,
		Context:  ctx,
	})
	if err != nil {
		return Patch{Body: omitted(aName, bName)}
	}
	p.Body = body
	return p
}

// lines splits s after each newline. A last line without one gets one,
// otherwise difflib glues it to the next header.
func lines(s string) []string {
	if s == "" {
		return []string{}
	}
	out := strings.SplitAfter(s, "\n")
	if out[len(out)-1] == "" {
		return out[:len(out)-1]
	}
	out[len(out)-1] += "\n"
	return out
}

func omitted(aName, bName string) string {
	return fmt.Sprintf("--- %s\n+++ %s\n@@\n# diff omitted (oversize)\n", aName, bName)
}
