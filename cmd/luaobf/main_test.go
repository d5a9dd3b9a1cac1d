package main

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luaobf/internal/luavm"
)

func runCLI(t *testing.T, stdin string, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errb bytes.Buffer
	code = run(context.Background(), args, strings.NewReader(stdin), &out, &errb)
	return code, out.String(), errb.String()
}

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "", "--version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "luaobf dev\n", out)
}

func TestUsageErrors(t *testing.T) {
	code, _, errOut := runCLI(t, "")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "Usage:")

	code, _, _ = runCLI(t, "", "--no-such-flag")
	assert.Equal(t, 2, code)

	code, _, _ = runCLI(t, "x=1", "--integrity", "sometimes", "-")
	assert.Equal(t, 2, code)
}

func TestStdinToStdoutWithCheck(t *testing.T) {
	code, out, errOut := runCLI(t, "print('cli')", "--check", "--boot-delay", "0", "--seed", "42", "-")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, errOut, "check passed")
	res, err := luavm.Run(context.Background(), "artifact", out, luavm.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"cli"}, res.Lines)

	_, again, _ := runCLI(t, "print('cli')", "--boot-delay", "0", "--seed", "42", "-")
	assert.Equal(t, out, again)
}

func TestFileToFileAndBundle(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.lua")
	require.NoError(t, os.WriteFile(src, []byte("-- greet\nlocal who = \"world\"\nprint('hello ' .. who)\n"), 0o644))
	out := filepath.Join(dir, "out.lua")
	zipPath := filepath.Join(dir, "b", "bundle.zip")

	code, stdout, errOut := runCLI(t, "", "-o", out, "--bundle", zipPath, "--watermark", "w-1", "--permutation", "seeded", "--boot-delay", "0", src)
	require.Equal(t, 0, code, errOut)
	assert.Empty(t, stdout)

	art, err := os.ReadFile(out)
	require.NoError(t, err)
	res, err := luavm.Run(context.Background(), "artifact", string(art), luavm.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"hello world"}, res.Lines)

	zr, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"README.md", "manifest.json", "minify.patch", "obfuscated.lua"}, names)
}

func TestConfigFileWithFlagOverride(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "opts.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("junk: false\nbootDelay: 0\nintegrity: lenient\nwatermark: from-file\n"), 0o644))

	code, out, errOut := runCLI(t, "print(__wm)", "-c", cfg, "--watermark", "from-flag", "-")
	require.Equal(t, 0, code, errOut)
	assert.NotContains(t, out, "task.wait")
	res, err := luavm.Run(context.Background(), "artifact", out, luavm.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"from-flag"}, res.Lines)
	assert.Contains(t, out, "integrity warning")
}

func TestMissingConfig(t *testing.T) {
	code, _, _ := runCLI(t, "x=1", "-c", filepath.Join(t.TempDir(), "nope.yaml"), "-")
	assert.Equal(t, 1, code)
}

func TestRejectsBytecode(t *testing.T) {
	code, _, errOut := runCLI(t, "\x1bLuaQ", "-")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not text")
}

func TestDirMode(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "dist")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "lib"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "vendor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "main.lua"), []byte("print('main')"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "lib", "m.luau"), []byte("print('lib')"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "vendor", "v.lua"), []byte("print('v')"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.txt"), []byte("x"), 0o644))

	code, _, errOut := runCLI(t, "", "--dir", src, "--out-dir", out, "--exclude", "vendor", "--boot-delay", "0", "--seed", "7", "--check")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, errOut, "batch done")

	for rel, want := range map[string]string{"main.lua": "main", "lib/m.luau": "lib"} {
		art, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(rel)))
		require.NoError(t, err, rel)
		res, err := luavm.Run(context.Background(), rel, string(art), luavm.Options{})
		require.NoError(t, err, rel)
		assert.Equal(t, []string{want}, res.Lines, rel)
	}
	assert.NoFileExists(t, filepath.Join(out, "vendor", "v.lua"))
	assert.NoFileExists(t, filepath.Join(out, "notes.txt"))
}

func TestDirModeUsage(t *testing.T) {
	dir := t.TempDir()
	code, _, _ := runCLI(t, "", "--dir", dir)
	assert.Equal(t, 2, code)

	code, _, errOut := runCLI(t, "", "--dir", dir, "--out-dir", dir)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "must differ")
}

func TestDirModeReportsFailures(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "ok.lua"), []byte("print(1)"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "bin.lua"), []byte{0x00, 0x01, 0xff, 0xfe}, 0o644))
	out := filepath.Join(t.TempDir(), "o")

	code, _, errOut := runCLI(t, "", "--dir", src, "--out-dir", out, "--boot-delay", "0")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "bin.lua")
	assert.FileExists(t, filepath.Join(out, "ok.lua"))
}

func TestDirModeIncremental(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "dist")
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.lua"), []byte("print('a')"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "b.lua"), []byte("print('b')"), 0o644))
	args := []string{"--dir", src, "--out-dir", out, "--incremental", "--boot-delay", "0"}

	code, _, errOut := runCLI(t, "", args...)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, errOut, "built=2")
	assert.FileExists(t, filepath.Join(out, ".luaobf", "index.json"))
	first, err := os.ReadFile(filepath.Join(out, "a.lua"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(src, "b.lua"), []byte("print('b2')"), 0o644))
	code, _, errOut = runCLI(t, "", args...)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, errOut, "built=1")
	assert.Contains(t, errOut, "skipped=1")
	again, err := os.ReadFile(filepath.Join(out, "a.lua"))
	require.NoError(t, err)
	assert.Equal(t, first, again)

	art, err := os.ReadFile(filepath.Join(out, "b.lua"))
	require.NoError(t, err)
	res, err := luavm.Run(context.Background(), "b", string(art), luavm.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b2"}, res.Lines)

	// Changing options invalidates every entry.
	code, _, errOut = runCLI(t, "", append(args, "--junk=false")...)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, errOut, "built=2")
}

func TestDirModeIncrementalRebuildsGated(t *testing.T) {
	t.Setenv("GATE_SECRET", "s3cret")
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "dist")
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.lua"), []byte("print('a')"), 0o644))
	args := []string{"--dir", src, "--out-dir", out, "--incremental", "--boot-delay", "0",
		"--remote-gate", "--gate-url", "https://gate.example/key"}

	code, _, errOut := runCLI(t, "", args...)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, errOut, "built=1")

	// The baked token expires, so an unchanged source is still rebuilt.
	code, _, errOut = runCLI(t, "", args...)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, errOut, "built=1")
	assert.Contains(t, errOut, "skipped=0")
}
