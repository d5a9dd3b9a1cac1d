// Package options holds the generation options record. Input is the wire
// and file form: every field is optional and unset fields take defaults.
// Resolve turns an Input into Options, clamping out-of-range counts instead
// of rejecting them.
package options

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"luaobf/internal/digest"
	"luaobf/internal/pack"
)

// ErrInvalid marks options too malformed to clamp.
var ErrInvalid = errors.New("invalid options")

const (
	DefaultStage1Pieces = 10
	DefaultStage2Pieces = 14
	DefaultBootDelay    = 2
	MaxBootDelay        = 600
)

// Options is the resolved configuration of one obfuscation run.
type Options struct {
	Junk         bool          `json:"junk" yaml:"junk"`
	Watermark    string        `json:"watermark" yaml:"watermark"`
	Stage1Pieces int           `json:"stage1PieceCount" yaml:"stage1PieceCount"`
	Stage2Pieces int           `json:"stage2PieceCount" yaml:"stage2PieceCount"`
	BootDelay    int           `json:"bootDelay" yaml:"bootDelay"`
	RemoteGate   bool          `json:"remoteGate" yaml:"remoteGate"`
	GateURL      string        `json:"gateUrl" yaml:"gateUrl"`
	GateID       string        `json:"gateId,omitempty" yaml:"gateId,omitempty"`
	Integrity    digest.Policy `json:"integrity" yaml:"integrity"`
	Permutation  pack.Mode     `json:"permutation" yaml:"permutation"`
}

// Defaults returns the options used for every unset field.
func Defaults() Options {
	return Options{
		Junk:         true,
		Stage1Pieces: DefaultStage1Pieces,
		Stage2Pieces: DefaultStage2Pieces,
		BootDelay:    DefaultBootDelay,
		Integrity:    digest.Strict,
		Permutation:  pack.Explicit,
	}
}

// Normalize clamps the counts into their bounds and fills empty
// enumerations with their defaults. Unknown enumeration values are kept for
// validation to report.
func (o Options) Normalize() Options {
	o.Stage1Pieces = pack.Stage1Bounds.Clamp(o.Stage1Pieces)
	o.Stage2Pieces = pack.Stage2Bounds.Clamp(o.Stage2Pieces)
	o.BootDelay = max(0, min(MaxBootDelay, o.BootDelay))
	if o.Integrity == "" {
		o.Integrity = digest.Strict
	}
	if o.Permutation == "" {
		o.Permutation = pack.Explicit
	}
	return o
}

// Gated reports whether the artifact must redeem a gate token.
func (o Options) Gated() bool {
	return o.RemoteGate && o.GateURL != ""
}

// Input is the partially specified form accepted from JSON requests, YAML
// files and flags.
type Input struct {
	Junk         *bool   `json:"junk,omitempty" yaml:"junk,omitempty"`
	Watermark    *string `json:"watermark,omitempty" yaml:"watermark,omitempty"`
	Stage1Pieces *int    `json:"stage1PieceCount,omitempty" yaml:"stage1PieceCount,omitempty"`
	Stage2Pieces *int    `json:"stage2PieceCount,omitempty" yaml:"stage2PieceCount,omitempty"`
	BootDelay    *int    `json:"bootDelay,omitempty" yaml:"bootDelay,omitempty"`
	RemoteGate   *bool   `json:"remoteGate,omitempty" yaml:"remoteGate,omitempty"`
	GateURL      *string `json:"gateUrl,omitempty" yaml:"gateUrl,omitempty"`
	GateID       *string `json:"gateId,omitempty" yaml:"gateId,omitempty"`
	Integrity    *string `json:"integrity,omitempty" yaml:"integrity,omitempty"`
	Permutation  *string `json:"permutation,omitempty" yaml:"permutation,omitempty"`

	// Field names used by the original web form.
	Split       *int `json:"split,omitempty" yaml:"split,omitempty"`
	LatePieces  *int `json:"latePieces,omitempty" yaml:"latePieces,omitempty"`
	DelayFrames *int `json:"delayFrames,omitempty" yaml:"delayFrames,omitempty"`
}

// Merge returns in with every field set in over replacing its own.
func (in Input) Merge(over Input) Input {
	pick(&in.Junk, over.Junk)
	pick(&in.Watermark, over.Watermark)
	pick(&in.Stage1Pieces, over.Stage1Pieces)
	pick(&in.Stage2Pieces, over.Stage2Pieces)
	pick(&in.BootDelay, over.BootDelay)
	pick(&in.RemoteGate, over.RemoteGate)
	pick(&in.GateURL, over.GateURL)
	pick(&in.GateID, over.GateID)
	pick(&in.Integrity, over.Integrity)
	pick(&in.Permutation, over.Permutation)
	pick(&in.Split, over.Split)
	pick(&in.LatePieces, over.LatePieces)
	pick(&in.DelayFrames, over.DelayFrames)
	return in
}

func pick[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

// Resolve fills defaults, applies the legacy aliases, clamps counts and
// parses the enumerations.
func (in Input) Resolve() (Options, error) {
	o := Defaults()
	set(&o.Junk, in.Junk)
	set(&o.Watermark, in.Watermark)
	set(&o.Stage1Pieces, in.Split)
	set(&o.Stage1Pieces, in.Stage1Pieces)
	set(&o.Stage2Pieces, in.LatePieces)
	set(&o.Stage2Pieces, in.Stage2Pieces)
	set(&o.BootDelay, in.DelayFrames)
	set(&o.BootDelay, in.BootDelay)
	set(&o.RemoteGate, in.RemoteGate)
	set(&o.GateURL, in.GateURL)
	set(&o.GateID, in.GateID)

	o = o.Normalize()

	if in.Integrity != nil {
		p, err := digest.ParsePolicy(*in.Integrity)
		if err != nil {
			return Options{}, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		o.Integrity = p
	}
	if in.Permutation != nil {
		m, err := pack.ParseMode(*in.Permutation)
		if err != nil {
			return Options{}, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		o.Permutation = m
	}
	return o, nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// Load reads a YAML options file.
func Load(path string) (Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Input{}, fmt.Errorf("read options %s: %w", path, err)
	}
	var in Input
	if err := yaml.Unmarshal(data, &in); err != nil {
		return Input{}, fmt.Errorf("parse options %s: %w", path, err)
	}
	return in, nil
}
