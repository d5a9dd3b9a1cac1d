// Package ident issues random, collision-free Lua identifiers for the
// symbols an artifact declares. Uniqueness is tracked, not left to chance:
// every issued or reserved name is remembered for the lifetime of the
// Allocator, and Next fails once it cannot find a free name within the
// configured number of attempts.
package ident

import (
	"errors"
	"fmt"
)

// ErrExhausted is returned when no free name was found.
var ErrExhausted = errors.New("ident: no free identifier")

const (
	leading  = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	trailing = leading + "0123456789_"
)

// Rand is the randomness source names are drawn from.
type Rand interface {
	IntN(n int) int
}

// Config bounds generated names.
type Config struct {
	MinLen   int // default 6
	MaxLen   int // default 10
	Attempts int // per name, default 64
}

// Allocator hands out names for one artifact. It is not safe for
// concurrent use; each artifact owns its own.
type Allocator struct {
	r    Rand
	cfg  Config
	used map[string]struct{}
	seq  []string
}

// New returns an Allocator with Lua keywords and the runtime globals the
// artifacts touch already reserved.
func New(r Rand, cfg Config) *Allocator {
	if cfg.MinLen <= 0 {
		cfg.MinLen = 6
	}
	if cfg.MaxLen < cfg.MinLen {
		cfg.MaxLen = max(cfg.MinLen, 10)
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 64
	}
	a := &Allocator{r: r, cfg: cfg, used: make(map[string]struct{}, 64)}
	a.Reserve(Reserved...)
	return a
}

// Reserve marks names as taken without issuing them.
func (a *Allocator) Reserve(names ...string) {
	for _, n := range names {
		a.used[n] = struct{}{}
	}
}

// Taken reports whether name was issued or reserved.
func (a *Allocator) Taken(name string) bool {
	_, ok := a.used[name]
	return ok
}

// Next issues a fresh name.
func (a *Allocator) Next() (string, error) {
	for i := 0; i < a.cfg.Attempts; i++ {
		n := a.random()
		if a.Taken(n) {
			continue
		}
		a.used[n] = struct{}{}
		a.seq = append(a.seq, n)
		return n, nil
	}
	return "", fmt.Errorf("%w after %d attempts (%d names in use)", ErrExhausted, a.cfg.Attempts, len(a.used))
}

// Names issues one fresh name per role and returns them keyed by role.
func (a *Allocator) Names(roles ...string) (map[string]string, error) {
	out := make(map[string]string, len(roles))
	for _, role := range roles {
		n, err := a.Next()
		if err != nil {
			return nil, fmt.Errorf("name for %s: %w", role, err)
		}
		out[role] = n
	}
	return out, nil
}

// Issued returns the names handed out so far, in order.
func (a *Allocator) Issued() []string {
	return append([]string(nil), a.seq...)
}

func (a *Allocator) random() string {
	n := a.cfg.MinLen + a.r.IntN(a.cfg.MaxLen-a.cfg.MinLen+1)
	b := make([]byte, n)
	b[0] = leading[a.r.IntN(len(leading))]
	for i := 1; i < n; i++ {
		b[i] = trailing[a.r.IntN(len(trailing))]
	}
	return string(b)
}
