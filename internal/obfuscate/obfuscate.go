// Package obfuscate runs the whole pipeline: normalise, prepend the
// optional junk and watermark statements, minify, extract literals, encrypt
// them, pack the program into stage-2 and stage-2 into stage-1.
//
// Every call draws fresh randomness and shares no state with other calls,
// so Obfuscate is safe to run concurrently.
package obfuscate

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/google/uuid"

	"luaobf/internal/cipher"
	"luaobf/internal/digest"
	"luaobf/internal/gate"
	"luaobf/internal/ident"
	"luaobf/internal/literal"
	"luaobf/internal/minify"
	"luaobf/internal/options"
	"luaobf/internal/pack"
	"luaobf/internal/stage"
	"luaobf/internal/textutil"
	"luaobf/internal/validate"
)

// ErrNotText is returned for precompiled chunks and other binary input.
var ErrNotText = errors.New("obfuscate: source is not text")

// Rand is the randomness every component draws from. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
	Uint32() uint32
}

// Config carries collaborators of a run. The zero value is usable.
type Config struct {
	// Rand defaults to a ChaCha8 generator seeded from crypto/rand.
	Rand   Rand
	Logger *slog.Logger
	// Gate issues tokens for gated artifacts. Nil means asking the
	// configured gate URL over HTTP.
	Gate  gate.Source
	Ident ident.Config
}

// Result is one obfuscated artifact plus what went into it.
type Result struct {
	Output   string
	BuildID  string
	Shebang  string
	Prepared string // normalised source with junk and watermark, before minify
	Minified string
	Program  string // minified code with literal calls, as stage-2 runs it
	Stage2   string
	Literals []literal.Literal
	GateID   string
	GateURL  string
	Options  options.Options
	Inner    stage.Inner
	Outer    stage.Outer
}

// Obfuscate turns source into a self-decoding artifact.
func Obfuscate(ctx context.Context, source string, opts options.Options, cfg Config) (Result, error) {
	if bytes.HasPrefix([]byte(source), []byte("\x1bLua")) || bytes.IndexByte([]byte(source), 0) >= 0 {
		return Result{}, ErrNotText
	}
	opts = opts.Normalize()
	if err := validate.Options(opts); err != nil {
		return Result{}, err
	}
	r := cfg.Rand
	if r == nil {
		r = newRand()
	}
	log := cfg.Logger
	if log == nil {
		log = defaultLogger()
	}

	res := Result{Options: opts}
	buildID, err := uuid.NewRandomFromReader(randReader{r})
	if err != nil {
		return Result{}, fmt.Errorf("build id: %w", err)
	}
	res.BuildID = buildID.String()

	text, shebang := textutil.Source([]byte(source))
	res.Shebang = shebang

	alloc := ident.New(r, cfg.Ident)
	alloc.Reserve(literal.Extract(minify.Minify(text)).Code.Idents()...)

	var prefix []string
	if opts.Junk {
		j, err := junk(r, alloc)
		if err != nil {
			return Result{}, err
		}
		prefix = append(prefix, j)
	}
	if opts.Watermark != "" {
		prefix = append(prefix, watermark(opts.Watermark))
	}
	res.Prepared = text
	if len(prefix) > 0 {
		res.Prepared = joinLines(append(prefix, text)...)
	}
	res.Minified = minify.Minify(res.Prepared)

	ex := literal.Extract(res.Minified)
	res.Literals = ex.Literals

	names, err := stage.Allocate(alloc)
	if err != nil {
		return Result{}, fmt.Errorf("allocate names: %w", err)
	}
	res.Program = ex.Code.Render(names["LIT"])

	enc := make([]cipher.Encrypted, len(ex.Literals))
	for i, l := range ex.Literals {
		enc[i] = cipher.Encrypt(r, l.Value)
	}

	in := stage.Inner{
		Names:    names,
		Literals: enc,
		Body: pack.Pack(r, []byte(res.Program), pack.Config{
			Layout: pack.Keyed,
			Bounds: pack.Stage2Bounds,
			Pieces: opts.Stage2Pieces,
			Mode:   opts.Permutation,
		}),
		Policy: opts.Integrity,
	}

	if opts.Gated() {
		res.GateID = gateID(opts, r)
		src := cfg.Gate
		if src == nil {
			src = gate.HTTPSource{URL: opts.GateURL}
		}
		tok, err := src.Token(ctx, res.GateID)
		if err != nil {
			return Result{}, fmt.Errorf("gate token: %w", err)
		}
		res.GateURL, err = gate.WithQuery(opts.GateURL, res.GateID, tok.Exp)
		if err != nil {
			return Result{}, err
		}
		in.Gated, in.GateMask = true, tok.G
		log.Debug("gate token", "id", res.GateID, "exp", tok.Exp)
	} else if opts.RemoteGate {
		log.Warn("remote gate requested without a gate url, building ungated")
	}

	res.Stage2, err = in.Render()
	if err != nil {
		return Result{}, err
	}
	res.Inner = in

	out := stage.Outer{
		Names: names,
		Carrier: pack.Pack(r, []byte(res.Stage2), pack.Config{
			Layout: pack.Text,
			Bounds: pack.Stage1Bounds,
			Pieces: opts.Stage1Pieces,
			Mode:   opts.Permutation,
		}),
		Policy:    opts.Integrity,
		BootDelay: opts.BootDelay,
		GateURL:   res.GateURL,
		Header:    "build " + res.BuildID,
	}
	artifact, err := out.Render()
	if err != nil {
		return Result{}, err
	}
	res.Outer = out
	res.Output = artifact
	if shebang != "" {
		res.Output = shebang + "\n" + artifact
	}

	log.Debug("obfuscated",
		"build", res.BuildID,
		"literals", len(ex.Literals),
		"program_bytes", len(res.Program),
		"stage2_bytes", len(res.Stage2),
		"stage2_chunks", len(in.Body.Chunks),
		"stage1_pieces", len(out.Carrier.Chunks),
		"permutation", string(opts.Permutation),
		"integrity", string(opts.Integrity),
	)
	return res, nil
}

// Digests returns the two digests embedded in the artifact: the program
// body checked by stage-2 and the stage-2 text checked by stage-1.
func (r Result) Digests() (program, stage2 digest.Digest) {
	return r.Inner.Body.Digest, r.Outer.Carrier.Digest
}

// gateID picks the id a gated artifact redeems tokens for: the explicit
// option, the id already on the gate URL, the watermark, else a random UUID.
func gateID(opts options.Options, r Rand) string {
	switch {
	case opts.GateID != "":
		return opts.GateID
	case gate.IDFromURL(opts.GateURL) != "":
		return gate.IDFromURL(opts.GateURL)
	case opts.Watermark != "":
		return opts.Watermark
	}
	id, err := uuid.NewRandomFromReader(randReader{r})
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func newRand() *rand.Rand {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic(fmt.Sprintf("obfuscate: seed: %v", err))
	}
	return rand.New(rand.NewChaCha8(seed))
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// randReader adapts Rand to io.Reader for uuid generation.
type randReader struct{ r Rand }

func (rr randReader) Read(p []byte) (int, error) {
	var buf [4]byte
	for i := 0; i < len(p); i += 4 {
		binary.LittleEndian.PutUint32(buf[:], rr.r.Uint32())
		copy(p[i:], buf[:])
	}
	return len(p), nil
}
