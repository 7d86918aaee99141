package evaluator

import (
	"encoding/json"
	"fmt"

	"go.starlark.net/starlark"
)

// toStarlarkValue lifts a Go value produced by frontmatter/context building
// into the Starlark value space. Supported: nil, bool, string, the numeric
// kinds, []any, map[string]any, and anything already a starlark.Value.
func toStarlarkValue(v any) (starlark.Value, error) {
	switch t := v.(type) {
	case nil:
		return starlark.None, nil
	case starlark.Value:
		return t, nil
	case bool:
		return starlark.Bool(t), nil
	case string:
		return starlark.String(t), nil
	case int:
		return starlark.MakeInt(t), nil
	case int64:
		return starlark.MakeInt64(t), nil
	case float64:
		return starlark.Float(t), nil
	case []any:
		elems := make([]starlark.Value, len(t))
		for i, e := range t {
			sv, err := toStarlarkValue(e)
			if err != nil {
				return nil, err
			}
			elems[i] = sv
		}
		return starlark.NewList(elems), nil
	case map[string]any:
		d := starlark.NewDict(len(t))
		for k, e := range t {
			sv, err := toStarlarkValue(e)
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return d, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to a starlark value", v)
	}
}

// fromStarlarkValue lowers a Starlark value back into a plain Go value for
// merging into Context.Variables or for JSON-stringification of table
// results.
func fromStarlarkValue(v starlark.Value) (any, error) {
	switch t := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(t), nil
	case starlark.String:
		return string(t), nil
	case starlark.Int:
		if i, ok := t.Int64(); ok {
			return i, nil
		}
		return t.String(), nil
	case starlark.Float:
		return float64(t), nil
	case *starlark.List:
		out := make([]any, 0, t.Len())
		it := t.Iterate()
		defer it.Done()
		var x starlark.Value
		for it.Next(&x) {
			gv, err := fromStarlarkValue(x)
			if err != nil {
				return nil, err
			}
			out = append(out, gv)
		}
		return out, nil
	case starlark.Tuple:
		out := make([]any, len(t))
		for i, e := range t {
			gv, err := fromStarlarkValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = gv
		}
		return out, nil
	case *starlark.Dict:
		out := make(map[string]any, t.Len())
		for _, item := range t.Items() {
			k, ok := starlark.AsString(item[0])
			if !ok {
				return nil, fmt.Errorf("non-string dict key %v in frontmatter result", item[0])
			}
			gv, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			out[k] = gv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot convert starlark value of type %s", v.Type())
	}
}

// stringifyForText renders a non-Emittable evaluation result as the text
// that replaces an expression segment: scalars print plainly, tables
// (lists/dicts) are JSON-encoded per §4.4.
func stringifyForText(v starlark.Value) (string, error) {
	switch v.(type) {
	case starlark.String:
		s, _ := starlark.AsString(v)
		return s, nil
	case starlark.NoneType:
		return "", nil
	case *starlark.List, *starlark.Dict, starlark.Tuple:
		gv, err := fromStarlarkValue(v)
		if err != nil {
			return "", err
		}
		enc, err := json.Marshal(gv)
		if err != nil {
			return "", err
		}
		return string(enc), nil
	default:
		return v.String(), nil
	}
}
