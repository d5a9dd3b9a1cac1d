package stage

import (
	"fmt"
	"regexp"

	"luaobf/internal/ident"
)

// Names maps template roles to the identifiers of one artifact.
type Names map[string]string

// Roles shared by both stages. Stage-1 exports the helpers among them to
// stage-2 through its environment table under the same names.
var sharedRoles = []string{
	"ROOT", "DEC", "OPEN", "SUM", "HASH", "VERIFY", "LOAD", "GATE", "PERM",
}

var outerRoles = []string{
	"K", "SH", "LEN", "CSUM", "HSH", "P", "ORD", "ALPHA", "TAB", "WAIT", "RAW",
	"ENV", "FN", "ERR", "fetch", "u", "ok", "body",
}

var innerRoles = []string{
	"LB", "LK", "LS", "LC", "LIT", "P2", "K2", "S2", "L2", "O2", "LEN2",
	"CSUM2", "HSH2", "FINAL", "FENV", "FN2", "ERR2", "badc",
}

// locals used inside helper functions and loops
var localRoles = []string{
	"i", "j", "s", "t", "v", "b", "p", "c", "k", "sh", "n", "h", "out", "acc",
	"bits", "bad", "tag", "extra", "len", "sum", "hash", "src", "env", "name",
	"f", "e",
}

// Allocate issues one identifier for every template role.
func Allocate(a *ident.Allocator) (Names, error) {
	n := Names{}
	for _, group := range [][]string{sharedRoles, outerRoles, innerRoles, localRoles} {
		m, err := a.Names(group...)
		if err != nil {
			return nil, err
		}
		for role, id := range m {
			n[role] = id
		}
	}
	return n, nil
}

var placeholderRe = regexp.MustCompile(`@([A-Za-z0-9_]+)@`)

// expand replaces every @ROLE@ in tpl with vars[ROLE] and fails on unknown
// roles so a template typo never reaches an artifact.
func expand(tpl string, vars map[string]string) (string, error) {
	var missing string
	out := placeholderRe.ReplaceAllStringFunc(tpl, func(m string) string {
		key := m[1 : len(m)-1]
		v, ok := vars[key]
		if !ok && missing == "" {
			missing = key
		}
		return v
	})
	if missing != "" {
		return "", fmt.Errorf("stage: template references unknown role %q", missing)
	}
	return out, nil
}

func (n Names) vars() map[string]string {
	v := make(map[string]string, len(n)+16)
	for k, id := range n {
		v[k] = id
	}
	return v
}
