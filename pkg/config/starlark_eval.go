package config

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// StarlarkEvaluator executes executable fragments as sandboxed Starlark.
type StarlarkEvaluator struct {
	logger   zerolog.Logger
	maxSteps uint64
}

// NewStarlarkEvaluator creates a new Starlark evaluator. A zero maxSteps
// means no execution step budget.
func NewStarlarkEvaluator(logger zerolog.Logger, maxSteps uint64) *StarlarkEvaluator {
	return &StarlarkEvaluator{
		logger:   logger.With().Str("component", "starlark").Logger(),
		maxSteps: maxSteps,
	}
}

// Exec runs script against host. The script sees only the builtins below;
// load statements are rejected and print goes to the debug log.
//
//	set(key, value)          value None unsets
//	unset(key)
//	get(key, default=None)
//	environ()                frozen dict snapshot
//	import_profile(name)     name, or None when refused
//	profile                  the profile being loaded
func (se *StarlarkEvaluator) Exec(ctx context.Context, filename string, script []byte, host Host) error {
	thread := &starlark.Thread{
		Name: "senv:" + host.Profile(),
		Print: func(_ *starlark.Thread, msg string) {
			se.logger.Debug().Str("file", filename).Msg(msg)
		},
		Load: func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
			return nil, fmt.Errorf("load(%q) is not available in senv fragments", module)
		},
	}
	if se.maxSteps > 0 {
		thread.SetMaxExecutionSteps(se.maxSteps)
	}

	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(ctx.Err().Error())
	})
	defer stop()

	predeclared := starlark.StringDict{
		"struct":         starlarkstruct.Default,
		"profile":        starlark.String(host.Profile()),
		"set":            starlark.NewBuiltin("set", builtinSet(host)),
		"unset":          starlark.NewBuiltin("unset", builtinUnset(host)),
		"get":            starlark.NewBuiltin("get", builtinGet(host)),
		"environ":        starlark.NewBuiltin("environ", builtinEnviron(host)),
		"import_profile": starlark.NewBuiltin("import_profile", builtinImportProfile(ctx, host)),
	}

	if _, err := starlark.ExecFile(thread, filename, script, predeclared); err != nil {
		return fmt.Errorf("starlark execution failed: %w", err)
	}
	return nil
}

type builtinFunc func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error)

func builtinSet(host Host) builtinFunc {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var key string
		var value starlark.Value
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "key", &key, "value", &value); err != nil {
			return nil, err
		}
		if value == starlark.None {
			host.Unset(key)
			return starlark.None, nil
		}
		goVal, err := fromStarlarkValue(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", b.Name(), key, err)
		}
		host.Set(key, Stringify(goVal))
		return starlark.None, nil
	}
}

func builtinUnset(host Host) builtinFunc {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var key string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "key", &key); err != nil {
			return nil, err
		}
		host.Unset(key)
		return starlark.None, nil
	}
}

func builtinGet(host Host) builtinFunc {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var key string
		var def starlark.Value = starlark.None
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "key", &key, "default?", &def); err != nil {
			return nil, err
		}
		if v, ok := host.Lookup(key); ok {
			return starlark.String(v), nil
		}
		return def, nil
	}
}

func builtinEnviron(host Host) builtinFunc {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
			return nil, err
		}
		keys := host.Keys()
		sort.Strings(keys)
		dict := starlark.NewDict(len(keys))
		for _, k := range keys {
			if err := dict.SetKey(starlark.String(k), starlark.String(host.Get(k))); err != nil {
				return nil, err
			}
		}
		dict.Freeze()
		return dict, nil
	}
}

func builtinImportProfile(ctx context.Context, host Host) builtinFunc {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name); err != nil {
			return nil, err
		}
		imported, err := host.ImportProfile(ctx, name)
		if err != nil {
			return nil, err
		}
		if !imported {
			return starlark.None, nil
		}
		return starlark.String(name), nil
	}
}

// fromStarlarkValue converts a Starlark value to a Go value.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return val.String(), nil
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case starlark.Tuple:
		list := make([]interface{}, len(val))
		for i, elem := range val {
			item, err := fromStarlarkValue(elem)
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]interface{})
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]interface{})
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}
