package loader

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	lua "github.com/yuin/gopher-lua"
)

// DefaultLuaTimeout bounds the execution time of a settings script.
const DefaultLuaTimeout = 2 * time.Second

// LuaLoader loads settings from a Lua script that returns a table:
//
//	return {
//	  codeintel_live = false,
//	  codeintel_config = {
//	    Python3 = { python3 = getenv("HOME") .. "/.pyenv/shims/python3" },
//	  },
//	}
//
// Scripts run with only the base, table, string and math libraries.
// File loading functions are removed and getenv is provided read-only.
type LuaLoader struct {
	fs      FileSystem
	path    string
	Timeout time.Duration

	// ListKeys names options whose empty tables load as empty lists.
	ListKeys map[string]bool
}

// NewLuaLoader creates a new Lua loader for the given path.
func NewLuaLoader(path string) *LuaLoader {
	return NewLuaLoaderWithFS(DefaultFS(), path)
}

// NewLuaLoaderWithFS creates a Lua loader with a custom file system.
func NewLuaLoaderWithFS(fs FileSystem, path string) *LuaLoader {
	return &LuaLoader{fs: fs, path: path, Timeout: DefaultLuaTimeout}
}

// Load reads configuration from the configured path.
func (l *LuaLoader) Load() (map[string]any, error) {
	return l.LoadFrom(l.path)
}

// LoadFrom runs the script at path and converts its result.
func (l *LuaLoader) LoadFrom(path string) (map[string]any, error) {
	data, err := readFile(l.fs, path)
	if err != nil || data == nil {
		return nil, err
	}
	return l.run(path, string(data))
}

// LoadFromReader runs the script read from r.
func (l *LuaLoader) LoadFromReader(r io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	return l.run("<reader>", string(data))
}

func (l *LuaLoader) run(source, code string) (result map[string]any, err error) {
	L := newSandboxedState()
	defer L.Close()

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultLuaTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	L.SetContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			err = &ParseError{Path: source, Message: fmt.Sprintf("lua panic: %v", r)}
		}
	}()

	fn, err := L.Load(strings.NewReader(code), source)
	if err != nil {
		return nil, &ParseError{Path: source, Message: err.Error(), Err: err}
	}
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return nil, &ParseError{Path: source, Message: err.Error(), Err: err}
	}

	ret := L.Get(-1)
	L.Pop(1)

	switch v := ret.(type) {
	case *lua.LNilType:
		return map[string]any{}, nil
	case *lua.LTable:
		conv := luaConverter{listKeys: l.ListKeys, visited: make(map[*lua.LTable]bool)}
		m, ok := conv.table(v, "").(map[string]any)
		if !ok {
			return nil, &ParseError{Path: source, Message: "settings script must return a table with string keys"}
		}
		return m, nil
	default:
		return nil, &ParseError{Path: source, Message: fmt.Sprintf("settings script must return a table, got %s", ret.Type())}
	}
}

// newSandboxedState opens a Lua state limited to side-effect free libraries.
func newSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}

	L.SetGlobal("getenv", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if v, ok := os.LookupEnv(name); ok {
			L.Push(lua.LString(v))
		} else {
			L.Push(lua.LNil)
		}
		return 1
	}))
	return L
}

type luaConverter struct {
	listKeys map[string]bool
	visited  map[*lua.LTable]bool
}

func (c luaConverter) value(lv lua.LValue, key string) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if c.visited[v] {
			return nil
		}
		c.visited[v] = true
		defer delete(c.visited, v)
		return c.table(v, key)
	default:
		return nil
	}
}

// table converts a Lua table to a list when its keys are exactly 1..n and
// to a map otherwise.
func (c luaConverter) table(t *lua.LTable, key string) any {
	n := 0
	isArray := true
	t.ForEach(func(k, _ lua.LValue) {
		n++
		if kn, ok := k.(lua.LNumber); !ok || float64(kn) != float64(int(kn)) || int(kn) < 1 {
			isArray = false
		}
	})

	if n == 0 {
		if c.listKeys[key] {
			return []any{}
		}
		return map[string]any{}
	}

	for i := 1; isArray && i <= n; i++ {
		if t.RawGetInt(i) == lua.LNil {
			isArray = false
		}
	}

	if isArray {
		out := make([]any, n)
		for i := 1; i <= n; i++ {
			out[i-1] = c.value(t.RawGetInt(i), key)
		}
		return out
	}

	out := make(map[string]any, n)
	t.ForEach(func(k, v lua.LValue) {
		name := k.String()
		out[name] = c.value(v, name)
	})
	return out
}
