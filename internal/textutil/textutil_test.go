package textutil

import "testing"

func TestNormalizeLF(t *testing.T) {
	got := string(NormalizeLF([]byte("a\r\nb\rc\n")))
	if got != "a\nb\nc\n" {
		t.Fatalf("NormalizeLF = %q", got)
	}
}

func TestSourceStripsBOMAndShebang(t *testing.T) {
	text, sb := Source([]byte("\xEF\xBB\xBF#!/usr/bin/lua\r\nprint(1)\r\n"))
	if sb != "#!/usr/bin/lua" {
		t.Fatalf("shebang = %q", sb)
	}
	if text != "print(1)\n" {
		t.Fatalf("text = %q", text)
	}
}

func TestSourceWithoutShebang(t *testing.T) {
	text, sb := Source([]byte("x=1"))
	if sb != "" || text != "x=1" {
		t.Fatalf("got (%q, %q)", text, sb)
	}
}

func TestEnsureTrailingLF(t *testing.T) {
	if EnsureTrailingLF("a") != "a\n" || EnsureTrailingLF("a\n") != "a\n" || EnsureTrailingLF("") != "" {
		t.Fatalf("EnsureTrailingLF mismatch")
	}
}
