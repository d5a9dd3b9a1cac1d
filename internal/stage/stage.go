// Package stage assembles the two Lua artifacts. Stage-2 holds the
// encrypted literal table, its memoized decoder and the keyed program
// chunks; stage-1 carries stage-2 as one keyed, radix-64 encoded, permuted
// text and defines the helpers stage-2 borrows through its environment.
//
// Every identifier the artifacts declare comes from one Names set, so the
// two stages agree on helper names without any lookup by string.
package stage

import (
	"fmt"
	"strconv"
	"strings"

	"luaobf/internal/cipher"
	"luaobf/internal/digest"
	"luaobf/internal/pack"
)

// Inner describes stage-2.
type Inner struct {
	Names    Names
	Literals []cipher.Encrypted
	// Body uses the Keyed layout.
	Body   pack.Payload
	Policy digest.Policy
	// GateMask is XORed into every stored chunk key. The runtime folds the
	// gate byte back in, so a non-zero mask requires Gated.
	GateMask byte
	Gated    bool
}

// Outer describes stage-1.
type Outer struct {
	Names Names
	// Carrier holds the stage-2 text in the Text layout.
	Carrier   pack.Payload
	Policy    digest.Policy
	BootDelay int
	// GateURL is fetched for the gate byte when non-empty.
	GateURL string
	// Header is emitted as a leading block comment when non-empty.
	Header string
}

// Render returns the stage-2 source.
func (in Inner) Render() (string, error) {
	if in.Body.Layout != pack.Keyed {
		return "", fmt.Errorf("stage: inner body must use the keyed layout")
	}
	if in.GateMask != 0 && !in.Gated {
		return "", fmt.Errorf("stage: gate mask without a gate")
	}
	v := in.Names.vars()

	data := make([]string, len(in.Literals))
	keys := make([]byte, len(in.Literals))
	shifts := make([]byte, len(in.Literals))
	for i, l := range in.Literals {
		data[i], keys[i], shifts[i] = l.Data, l.Key, l.Shift
	}
	v["LITDATA"] = longList(data)
	v["LITKEYS"] = intList(keys)
	v["LITSHIFTS"] = intList(shifts)

	chunks := in.Body.Chunks
	ckeys := make([]byte, len(chunks))
	cshifts := make([]byte, len(chunks))
	clens := make([]int, len(chunks))
	for i, c := range chunks {
		ckeys[i], cshifts[i], clens[i] = c.Key^in.GateMask, c.Shift, c.Length
	}
	v["PIECES"] = longList(in.Body.Pieces())
	v["KEYS"] = intList(ckeys)
	v["SHIFTS"] = intList(cshifts)
	v["LENGTHS"] = intList(clens)
	setDigest(v, in.Body.Digest)
	v["KEYEXPR"] = v["K2"] + "[" + v["j"] + "]"
	if in.Gated {
		v["KEYEXPR"] = "bit32.bxor(" + v["KEYEXPR"] + "," + v["GATE"] + ")"
	}

	return render(v,
		litLua,
		innerPiecesLua,
		orderLua(in.Body.Perm, "O2", "P2"),
		innerJoinLua,
	)
}

// Render returns the stage-1 source, the artifact the user receives.
func (o Outer) Render() (string, error) {
	if o.Carrier.Layout != pack.Text {
		return "", fmt.Errorf("stage: outer carrier must use the text layout")
	}
	v := o.Names.vars()
	v["KEY"] = strconv.Itoa(int(o.Carrier.Key))
	v["SHIFT"] = strconv.Itoa(int(o.Carrier.Shift))
	v["PIECES"] = longList(o.Carrier.Pieces())
	v["DELAY"] = strconv.Itoa(o.BootDelay)
	v["URL"] = Quote([]byte(o.GateURL))
	v["PERMEXPORT"] = ""
	if o.Carrier.Perm.Mode == pack.Seeded {
		v["PERMEXPORT"] = "," + v["PERM"] + "=" + v["PERM"]
	}
	setDigest(v, o.Carrier.Digest)

	var head strings.Builder
	if o.Header != "" {
		head.WriteString("--[[ ")
		head.WriteString(strings.ReplaceAll(o.Header, "]]", "] ]"))
		head.WriteString(" ]]\n")
	}
	head.WriteString("do\n")
	head.WriteString(`local @K@,@SH@=@KEY@,@SHIFT@
local @LEN@,@CSUM@,@HSH@=@DLEN@,@DSUM@,@DHASH@
local @P@={@PIECES@}
`)
	parts := []string{
		head.String(),
		rootLua,
		decLua,
		openLua,
		digestLua,
		verifyHeadLua,
		verifyBranch(o.Policy),
		verifyTailLua,
		loadLua,
	}
	// The wait runs before any piece order is rebuilt.
	if o.BootDelay > 0 {
		parts = append(parts, waitLua)
	}
	if o.Carrier.Perm.Mode == pack.Seeded {
		parts = append(parts, permLua)
	}
	parts = append(parts, orderLua(o.Carrier.Perm, "ORD", "P"))
	if o.GateURL != "" {
		parts = append(parts, gateOnLua)
	} else {
		parts = append(parts, gateOffLua)
	}
	parts = append(parts, outerBodyLua)
	return render(v, parts...)
}

func render(v map[string]string, parts ...string) (string, error) {
	var sb strings.Builder
	for _, p := range parts {
		s, err := expand(p, v)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

func setDigest(v map[string]string, d digest.Digest) {
	v["DLEN"] = u32(d.Length)
	v["DSUM"] = u32(d.Checksum)
	v["DHASH"] = u32(d.Hash)
}

func verifyBranch(p digest.Policy) string {
	if p == digest.Lenient {
		return verifyLenientLua
	}
	return verifyStrictLua
}

// orderLua declares the order table named by role for the pieces table
// named by pieces, either verbatim or through the seeded PERM helper.
func orderLua(p pack.Permutation, role, pieces string) string {
	if p.Mode == pack.Seeded {
		return "local @" + role + "@=@PERM@(#@" + pieces + "@," + u32(p.Seed) + ")\n"
	}
	return "local @" + role + "@={" + intList(p.Order) + "}\n"
}
