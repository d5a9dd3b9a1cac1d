package ziputil

import (
	"archive/zip"
	"bytes"
	"io/fs"
	"testing"
)

func TestSanitizePath(t *testing.T) {
	cases := map[string]string{
		"a/b.lua":        "a/b.lua",
		"C:/x/y.lua":     "x/y.lua",
		"/abs/../../etc": "etc",
		"./a/./b":        "a/b",
		"..":             "entry",
	}
	for in, want := range cases {
		if got := SanitizePath(in); got != want {
			t.Errorf("SanitizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEntriesUseFixedTime(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if err := WriteText(zw, "a.txt", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := WriteJSON(zw, "b.json", map[string]int{"n": 1}); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range zr.File {
		if !f.Modified.Equal(FixedZipTime) {
			t.Errorf("%s modified %v", f.Name, f.Modified)
		}
	}
}

func TestWriteModeKeepsPermissionBits(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if err := WriteMode(zw, "run.lua", []byte("#!/usr/bin/env lua\n"), ModeExec); err != nil {
		t.Fatal(err)
	}
	if err := WriteText(zw, "plain.txt", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]fs.FileMode{"run.lua": ModeExec, "plain.txt": ModeFile}
	for _, f := range zr.File {
		if got := f.Mode().Perm(); got != want[f.Name] {
			t.Errorf("%s mode %v, want %v", f.Name, got, want[f.Name])
		}
	}
}
