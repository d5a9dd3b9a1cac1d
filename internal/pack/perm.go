package pack

import (
	"fmt"
)

// Mode selects how a Permutation is shipped inside an artifact.
type Mode string

const (
	// Explicit ships the order array verbatim. It is the default: the
	// decoder only indexes a table.
	Explicit Mode = "explicit"
	// Seeded ships a 32-bit seed; the decoder re-runs the xorshift driven
	// Fisher-Yates shuffle. Correct only while both sides stay bit-identical,
	// which testdata/xorshift.json pins down.
	Seeded Mode = "seeded"
)

// ParseMode accepts "explicit" or "seeded"; empty means Explicit.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", Explicit:
		return Explicit, nil
	case Seeded:
		return Seeded, nil
	}
	return "", fmt.Errorf("unknown permutation mode %q", s)
}

// Permutation maps piece i (0-based) to storage slot Order[i] (1-based).
type Permutation struct {
	Mode  Mode   `json:"mode"`
	Order []int  `json:"order"`
	Seed  uint32 `json:"seed,omitempty"`
}

// NewExplicit draws a uniform permutation of 1..n from r.
func NewExplicit(r Rand, n int) Permutation {
	order := identity(n)
	for i := n - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return Permutation{Mode: Explicit, Order: order}
}

// NewSeeded derives the permutation of 1..n from seed. A zero seed would
// pin xorshift at zero and is replaced by 1.
func NewSeeded(seed uint32, n int) Permutation {
	if seed == 0 {
		seed = 1
	}
	x := Xorshift32(seed)
	order := identity(n)
	for i := n; i > 1; i-- {
		j := 1 + int(x.Next()%uint32(i))
		order[i-1], order[j-1] = order[j-1], order[i-1]
	}
	return Permutation{Mode: Seeded, Order: order, Seed: seed}
}

// New builds a permutation in the given mode, drawing from r.
func New(r Rand, mode Mode, n int) Permutation {
	if mode == Seeded {
		return NewSeeded(r.Uint32(), n)
	}
	return NewExplicit(r, n)
}

// Validate checks that Order is a bijection on 1..len(Order) and, for the
// seeded mode, that it is the one the seed produces.
func (p Permutation) Validate() error {
	seen := make([]bool, len(p.Order)+1)
	for i, v := range p.Order {
		if v < 1 || v > len(p.Order) {
			return fmt.Errorf("order[%d]=%d out of range 1..%d", i, v, len(p.Order))
		}
		if seen[v] {
			return fmt.Errorf("order[%d]=%d repeated", i, v)
		}
		seen[v] = true
	}
	if p.Mode == Seeded {
		want := NewSeeded(p.Seed, len(p.Order))
		for i := range want.Order {
			if want.Order[i] != p.Order[i] {
				return fmt.Errorf("order does not match seed %d at %d", p.Seed, i)
			}
		}
	}
	return nil
}

// Shuffle places pieces into storage order: out[Order[i]-1] = pieces[i].
func Shuffle[T any](p Permutation, pieces []T) []T {
	out := make([]T, len(pieces))
	for i, v := range pieces {
		out[p.Order[i]-1] = v
	}
	return out
}

// Unshuffle reverses Shuffle: out[i] = stored[Order[i]-1].
func Unshuffle[T any](p Permutation, stored []T) []T {
	out := make([]T, len(stored))
	for i := range out {
		out[i] = stored[p.Order[i]-1]
	}
	return out
}

func identity(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i + 1
	}
	return order
}
