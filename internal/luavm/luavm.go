// Package luavm runs Lua chunks in an embedded gopher-lua state extended
// with a bit32 library, a captured print and an optional __OBF_FETCH hook.
// It backs the equivalence check and the artifact tests.
package luavm

import (
	"context"
	"fmt"
	"math"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// Options configures a Run.
type Options struct {
	// Fetch, when set, is exposed as the global __OBF_FETCH(url).
	Fetch func(url string) (string, error)
	// Globals are set as string globals before the chunk runs.
	Globals map[string]string
}

// Result is what a chunk printed and returned.
type Result struct {
	Lines   []string
	Returns []string
}

// Output joins the printed lines with newlines.
func (r Result) Output() string {
	return strings.Join(r.Lines, "\n")
}

// Run executes src as a main chunk named name.
func Run(ctx context.Context, name, src string, opts Options) (Result, error) {
	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)

	var res Result
	L.SetGlobal("bit32", bit32(L))
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, L.GetTop())
		for i := range parts {
			parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
		}
		res.Lines = append(res.Lines, strings.Join(parts, "\t"))
		return 0
	}))
	if opts.Fetch != nil {
		L.SetGlobal("__OBF_FETCH", L.NewFunction(func(L *lua.LState) int {
			body, err := opts.Fetch(L.CheckString(1))
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			L.Push(lua.LString(body))
			return 1
		}))
	}
	for k, v := range opts.Globals {
		L.SetGlobal(k, lua.LString(v))
	}

	fn, err := L.Load(strings.NewReader(src), name)
	if err != nil {
		return res, fmt.Errorf("load %s: %w", name, err)
	}
	top := L.GetTop()
	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		return res, fmt.Errorf("run %s: %w", name, err)
	}
	for i := top + 1; i <= L.GetTop(); i++ {
		res.Returns = append(res.Returns, L.ToStringMeta(L.Get(i)).String())
	}
	return res, nil
}

// Equivalent runs both chunks and reports whether they printed and returned
// the same values.
func Equivalent(ctx context.Context, original, obfuscated string, opts Options) (bool, error) {
	want, err := Run(ctx, "original", original, opts)
	if err != nil {
		return false, err
	}
	got, err := Run(ctx, "obfuscated", obfuscated, opts)
	if err != nil {
		return false, err
	}
	return want.Output() == got.Output() && strings.Join(want.Returns, "\x00") == strings.Join(got.Returns, "\x00"), nil
}

func bit32(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	fold := func(op func(a, b uint32) uint32, init uint32) lua.LGFunction {
		return func(L *lua.LState) int {
			acc := init
			for i := 1; i <= L.GetTop(); i++ {
				acc = op(acc, toU32(L.CheckNumber(i)))
			}
			L.Push(lua.LNumber(acc))
			return 1
		}
	}
	shift := func(op func(x uint32, n uint) uint32) lua.LGFunction {
		return func(L *lua.LState) int {
			x := toU32(L.CheckNumber(1))
			n := int(L.CheckNumber(2))
			var r uint32
			switch {
			case n <= -32 || n >= 32:
			case n >= 0:
				r = op(x, uint(n))
			}
			L.Push(lua.LNumber(r))
			return 1
		}
	}
	L.SetFuncs(t, map[string]lua.LGFunction{
		"band":   fold(func(a, b uint32) uint32 { return a & b }, math.MaxUint32),
		"bor":    fold(func(a, b uint32) uint32 { return a | b }, 0),
		"bxor":   fold(func(a, b uint32) uint32 { return a ^ b }, 0),
		"lshift": shift(func(x uint32, n uint) uint32 { return x << n }),
		"rshift": shift(func(x uint32, n uint) uint32 { return x >> n }),
		"bnot": func(L *lua.LState) int {
			L.Push(lua.LNumber(^toU32(L.CheckNumber(1))))
			return 1
		},
	})
	return t
}

// toU32 reduces a Lua number modulo 2^32 the way bit32 does.
func toU32(n lua.LNumber) uint32 {
	return uint32(int64(math.Floor(float64(n))))
}
