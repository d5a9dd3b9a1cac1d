package diff

import (
	"strings"
	"testing"
)

func TestUnifiedShowsChange(t *testing.T) {
	p := Unified("a.lua", "b.lua", []byte("x = 1 -- one\ny = 2\n-- tail\n"), []byte("x = 1\ny = 2"), Options{})
	if p.Oversize {
		t.Fatalf("unexpected oversize")
	}
	for _, want := range []string{"--- a.lua", "+++ b.lua", "-x = 1 -- one\n", "+x = 1\n", "--- tail\n"} {
		if !strings.Contains(p.Body, want) {
			t.Fatalf("patch misses %q:\n%s", want, p.Body)
		}
	}
	if p.Removed != 2 || p.Added != 1 {
		t.Fatalf("removed=%d added=%d, want 2 and 1", p.Removed, p.Added)
	}
}

func TestUnifiedIdenticalIsEmpty(t *testing.T) {
	p := Unified("a", "b", []byte("same\n"), []byte("same\n"), Options{})
	if p.Body != "" || p.Removed != 0 || p.Added != 0 {
		t.Fatalf("expected empty patch, got %+v", p)
	}
}

func TestUnifiedOversize(t *testing.T) {
	p := Unified("a", "b", []byte("12345"), []byte("678"), Options{MaxBytes: 4})
	if !p.Oversize || !strings.Contains(p.Body, "# diff omitted (oversize)") {
		t.Fatalf("got %+v", p)
	}
}

func TestLinesTerminatesLastLine(t *testing.T) {
	got := lines("a\nb")
	if len(got) != 2 || got[1] != "b\n" {
		t.Fatalf("got %q", got)
	}
	if len(lines("")) != 0 {
		t.Fatalf("empty input should give no lines")
	}
}
