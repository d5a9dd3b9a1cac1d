package digest

import "fmt"

// Policy decides what a reconstructed artifact does on a digest mismatch.
// Exactly one policy is encoded into an artifact at generation time.
type Policy string

const (
	// Strict aborts before the reconstructed text is ever evaluated.
	Strict Policy = "strict"
	// Lenient logs a warning and evaluates the possibly corrupted text.
	Lenient Policy = "lenient"
)

// ParsePolicy accepts "strict" or "lenient"; empty means Strict.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", Strict:
		return Strict, nil
	case Lenient:
		return Lenient, nil
	}
	return "", fmt.Errorf("unknown integrity policy %q", s)
}
