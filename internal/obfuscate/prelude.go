package obfuscate

import (
	"fmt"
	"strings"

	"luaobf/internal/ident"
	"luaobf/internal/stage"
)

// WatermarkGlobal is the global the watermark statement assigns. An
// earlier marker already set by the host is kept.
const WatermarkGlobal = "__wm"

func watermark(mark string) string {
	return fmt.Sprintf("local %[1]s=%[2]s;_G.%[1]s=(_G.%[1]s or %[1]s)", WatermarkGlobal, stage.Quote([]byte(mark)))
}

// junk returns an inert block: a closure that is never called and a loop
// whose range is empty.
func junk(r Rand, a *ident.Allocator) (string, error) {
	n, err := a.Names("acc", "fn", "arg", "idx")
	if err != nil {
		return "", fmt.Errorf("junk names: %w", err)
	}
	seed := 1 + r.IntN(9999)
	step := 2 + r.IntN(97)
	return fmt.Sprintf(
		"do local %s=%d local %s=function(%s) return %s*%d end for %s=%d,%d do %s=%s(%s) end end",
		n["acc"], seed,
		n["fn"], n["arg"], n["arg"], step,
		n["idx"], step, step-1, n["acc"], n["fn"], n["idx"],
	), nil
}

func joinLines(parts ...string) string {
	return strings.Join(parts, "\n")
}
