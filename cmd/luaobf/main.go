// Package main provides the luaobf CLI. It turns Lua sources into
// self-decoding two-stage artifacts, optionally packed into a reproducible
// bundle, or serves the pipeline over HTTP.
//
// Modes:
//   - FILE   : luaobf [flags] <file.lua|-> [-o out.lua] [--bundle out.zip]
//   - DIR    : luaobf [flags] --dir src --out-dir dist
//   - SERVER : luaobf --serve :8080
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"luaobf/internal/bundle"
	"luaobf/internal/diff"
	"luaobf/internal/gate"
	"luaobf/internal/luavm"
	"luaobf/internal/obfuscate"
	"luaobf/internal/options"
	"luaobf/internal/server"
	"luaobf/internal/textutil"
	"luaobf/internal/validate"
)

var version = "dev"

const defaultGateSecret = "change-me"

type cliFlags struct {
	config, out, bundle, serve string
	dir, outDir                string
	exclude                    []string
	maxFileBytes               int64
	check, verbose, showVer    bool
	incremental                bool
	seed                       uint64

	junk, remoteGate                                bool
	watermark, gateURL, gateID, integrity, permMode string
	stage1, stage2, bootDelay                       int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func newFlagSet(f *cliFlags, stderr io.Writer) *flag.FlagSet {
	flags := flag.NewFlagSet("luaobf", flag.ContinueOnError)
	flags.SetOutput(stderr)

	// Output & modes
	flags.StringVarP(&f.config, "config", "c", "", "YAML options file; flags override its fields")
	flags.StringVarP(&f.out, "out", "o", "", "write the artifact here instead of stdout")
	flags.StringVar(&f.bundle, "bundle", "", "also write a reproducible zip with artifact, manifest and minify patch")
	flags.StringVar(&f.serve, "serve", "", "serve POST /obfuscate and GET /key on this address")
	flags.StringVar(&f.dir, "dir", "", "obfuscate every .lua/.luau file under this directory")
	flags.StringVar(&f.outDir, "out-dir", "", "DIR mode output root (mirrors the --dir layout)")
	flags.StringSliceVar(&f.exclude, "exclude", nil, "DIR mode: skip entries whose base name starts with these prefixes")
	flags.Int64Var(&f.maxFileBytes, "max-file-bytes", 4<<20, "DIR mode: skip sources larger than this (0 = no limit)")
	flags.BoolVar(&f.incremental, "incremental", false, "DIR mode: skip sources unchanged since the last build into --out-dir")
	flags.BoolVar(&f.check, "check", false, "run source and artifact in the embedded Lua VM and compare their output")
	flags.Uint64Var(&f.seed, "seed", 0, "seed the randomness for a reproducible build (0 = fresh randomness)")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")
	flags.BoolVar(&f.showVer, "version", false, "print the version and exit")

	// Options
	flags.BoolVar(&f.junk, "junk", true, "prepend an inert statement block")
	flags.StringVar(&f.watermark, "watermark", "", "marker assigned to the global __wm")
	flags.IntVar(&f.stage1, "stage1-pieces", options.DefaultStage1Pieces, "stage-1 piece count, clamped to [5,48]")
	flags.IntVar(&f.stage2, "stage2-pieces", options.DefaultStage2Pieces, "stage-2 chunk count, clamped to [6,64]")
	flags.IntVar(&f.bootDelay, "boot-delay", options.DefaultBootDelay, "yield cycles before decoding, clamped to [0,600]")
	flags.BoolVar(&f.remoteGate, "remote-gate", false, "require a gate token at run time")
	flags.StringVar(&f.gateURL, "gate-url", "", "gate endpoint, e.g. https://host/key")
	flags.StringVar(&f.gateID, "gate-id", "", "id tokens are issued for (default: url id, watermark, random)")
	flags.StringVar(&f.integrity, "integrity", "strict", "integrity policy: strict or lenient")
	flags.StringVar(&f.permMode, "permutation", "explicit", "piece order shipping: explicit or seeded")

	flags.Usage = func() {
		fmt.Fprintf(stderr, "Usage:\n")
		fmt.Fprintf(stderr, "  FILE   : luaobf [flags] <file.lua|->\n")
		fmt.Fprintf(stderr, "  DIR    : luaobf [flags] --dir src --out-dir dist\n")
		fmt.Fprintf(stderr, "  SERVER : luaobf --serve :8080\n")
		fmt.Fprintf(stderr, "\nFlags:\n%s", flags.FlagUsages())
	}
	return flags
}

// optionsInput returns the options set explicitly on the command line.
func optionsInput(flags *flag.FlagSet, f *cliFlags) options.Input {
	var in options.Input
	if flags.Changed("junk") {
		in.Junk = &f.junk
	}
	if flags.Changed("watermark") {
		in.Watermark = &f.watermark
	}
	if flags.Changed("stage1-pieces") {
		in.Stage1Pieces = &f.stage1
	}
	if flags.Changed("stage2-pieces") {
		in.Stage2Pieces = &f.stage2
	}
	if flags.Changed("boot-delay") {
		in.BootDelay = &f.bootDelay
	}
	if flags.Changed("remote-gate") {
		in.RemoteGate = &f.remoteGate
	}
	if flags.Changed("gate-url") {
		in.GateURL = &f.gateURL
	}
	if flags.Changed("gate-id") {
		in.GateID = &f.gateID
	}
	if flags.Changed("integrity") {
		in.Integrity = &f.integrity
	}
	if flags.Changed("permutation") {
		in.Permutation = &f.permMode
	}
	return in
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    !isTerminal(w),
	}))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func gateSecret() []byte {
	if s := os.Getenv("GATE_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte(defaultGateSecret)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var f cliFlags
	flags := newFlagSet(&f, stderr)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if f.showVer {
		fmt.Fprintf(stdout, "luaobf %s\n", version)
		return 0
	}
	log := newLogger(stderr, f.verbose)

	// ----- Options: defaults < YAML < flags ---------------------------------
	in := options.Input{}
	if f.config != "" {
		fileIn, err := options.Load(f.config)
		if err != nil {
			log.Error("load config", "err", err)
			return 1
		}
		in = fileIn
	}
	in = in.Merge(optionsInput(flags, &f))

	// ===================== SERVER MODE =====================================
	if f.serve != "" {
		logger := logrus.New()
		logger.SetOutput(stderr)
		if f.verbose {
			logger.SetLevel(logrus.DebugLevel)
		}
		if os.Getenv("GATE_SECRET") == "" {
			log.Warn("GATE_SECRET not set, using the default secret")
		}
		srv := server.New(server.Config{
			Logger:   logger,
			Issuer:   gate.Issuer{Secret: gateSecret()},
			Defaults: in,
		})
		if err := srv.ListenAndServe(ctx, f.serve); err != nil {
			log.Error("serve", "err", err)
			return 1
		}
		return 0
	}

	opts, err := in.Resolve()
	if err != nil {
		log.Error("options", "err", err)
		return 2
	}
	cfg := obfuscate.Config{Logger: log}
	if opts.Gated() && os.Getenv("GATE_SECRET") != "" {
		// Mint tokens locally when this process shares the endpoint's secret.
		cfg.Gate = gate.Issuer{Secret: gateSecret()}
	}
	check := f.check
	if check && opts.Gated() {
		log.Warn("skipping --check for a gated artifact")
		check = false
	}

	// ===================== DIR MODE ========================================
	if f.dir != "" {
		if f.outDir == "" || flags.NArg() != 0 {
			flags.Usage()
			return 2
		}
		sum, err := runBatch(ctx, batchConfig{
			Dir:          f.dir,
			OutDir:       f.outDir,
			MaxFileBytes: f.maxFileBytes,
			Exclude:      f.exclude,
			Seed:         f.seed,
			Check:        check,
			Incremental:  f.incremental,
			Tool:         "luaobf " + version,
		}, opts, cfg, log)
		if err != nil {
			log.Error("batch", "err", err)
			return 1
		}
		log.Info("batch done", "files", sum.Files, "built", sum.Built, "skipped", sum.Skipped, "failed", sum.Failed, "bytes", sum.Bytes)
		if sum.Failed > 0 {
			return 1
		}
		return 0
	}

	// ===================== FILE MODE =======================================
	if flags.NArg() != 1 {
		flags.Usage()
		return 2
	}
	src, err := readSource(flags.Arg(0), stdin)
	if err != nil {
		log.Error("read source", "err", err)
		return 1
	}
	if f.seed != 0 {
		cfg.Rand = rand.New(rand.NewPCG(f.seed, f.seed))
	}
	res, err := obfuscate.Obfuscate(ctx, string(src), opts, cfg)
	if err != nil {
		log.Error("obfuscate", "err", err)
		return 1
	}
	log.Info("built", "build", res.BuildID, "literals", len(res.Literals), "bytes", len(res.Output))

	if check {
		if err := checkArtifact(ctx, src, res); err != nil {
			log.Error("check", "err", err)
			return 1
		}
		log.Info("check passed")
	}

	if f.out != "" {
		if err := os.WriteFile(f.out, []byte(res.Output), 0o644); err != nil {
			log.Error("write artifact", "err", err)
			return 1
		}
	} else if _, err := io.WriteString(stdout, textutil.EnsureTrailingLF(res.Output)); err != nil {
		log.Error("write artifact", "err", err)
		return 1
	}

	if f.bundle != "" {
		program, stage2 := res.Digests()
		m := bundle.Manifest{
			Tool:         "luaobf " + version,
			BuildID:      res.BuildID,
			GateID:       res.GateID,
			Options:      res.Options,
			Program:      program,
			Stage2:       stage2,
			Stage1Pieces: len(res.Outer.Carrier.Chunks),
			Stage2Pieces: len(res.Inner.Body.Chunks),
			Literals:     len(res.Literals),
		}
		b := bundle.New(m, res.Output, res.Prepared, res.Minified, diff.Options{MaxBytes: 2_000_000})
		if err := validate.Manifest(b.Manifest); err != nil {
			log.Error("manifest", "err", err)
			return 1
		}
		if err := b.WriteFile(f.bundle); err != nil {
			log.Error("write bundle", "err", err)
			return 1
		}
		log.Info("bundle written", "path", f.bundle)
	}
	return 0
}

var errCheckMismatch = errors.New("artifact output differs from source output")

// checkArtifact runs the source and the artifact in the embedded VM and
// compares what they print and return.
func checkArtifact(ctx context.Context, src []byte, res obfuscate.Result) error {
	text, _ := textutil.Source(src)
	art := res.Output
	if res.Shebang != "" {
		art = art[len(res.Shebang)+1:]
	}
	ok, err := luavm.Equivalent(ctx, text, art, luavm.Options{})
	if err != nil {
		return err
	}
	if !ok {
		return errCheckMismatch
	}
	return nil
}

func readSource(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
