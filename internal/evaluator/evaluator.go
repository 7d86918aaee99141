// Package evaluator implements the sandboxed expression evaluator: inline
// {{…}} expressions and frontmatter code run inside a fixed, enumerated
// set of bindings with no ambient I/O, network, or process access.
//
// Grounded on the wider example pack's use of go.starlark.net
// (go.starlark.net is a config/scripting language built for exactly this
// "safe env" contract — no side-effectful globals reachable by
// construction — rather than an ad hoc interpreter restriction layered on
// a general-purpose language).
package evaluator

import (
	"fmt"
	"path/filepath"

	"go.starlark.net/starlark"

	"github.com/flemma-dev/flemma-core/internal/codeblock"
)

// Language is the codeblock registry tag for frontmatter/tool-input code
// written in the evaluator's own language.
const Language = "flemma"

// Evaluator runs expressions and frontmatter in the sandboxed
// environment, reading files through an injected FileSystem.
type Evaluator struct {
	fs FileSystem
}

// New creates an Evaluator backed by fs. A nil fs defaults to OSFileSystem.
func New(fs FileSystem) *Evaluator {
	if fs == nil {
		fs = OSFileSystem{}
	}
	return &Evaluator{fs: fs}
}

// RegisterInto installs the evaluator language's codeblock parser (raw
// source → Starlark top-level bindings, as a map) into the registry.
func (e *Evaluator) RegisterInto(reg *codeblock.Registry) {
	reg.Register(Language, func(code string, rctx codeblock.EvalContext) (any, error) {
		ctx, _ := rctx.(*Context)
		if ctx == nil {
			ctx = NewContext("")
		}
		return e.RunFrontmatter(code, ctx)
	})
}

func (e *Evaluator) predeclared(ctx *Context) (starlark.StringDict, error) {
	dir := ""
	if ctx.Filename != "" {
		dir = filepath.Dir(ctx.Filename)
	}
	env := starlark.StringDict{
		"include":    newIncludeBuiltin(e.fs, dir),
		"__filename": starlark.String(ctx.Filename),
		"__dirname":  starlark.String(dir),
	}
	for k, v := range ctx.Variables {
		sv, err := toStarlarkValue(v)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", k, err)
		}
		env[k] = sv
	}
	return env, nil
}

// RunFrontmatter executes frontmatter source and returns the resulting
// key→value bindings as a plain map. If execution fails, the caller
// (processor) is responsible for turning the error into a "frontmatter"
// diagnostic and continuing with the base context — this function only
// ever returns a Go error, it never panics.
func (e *Evaluator) RunFrontmatter(code string, ctx *Context) (map[string]any, error) {
	predeclared, err := e.predeclared(ctx)
	if err != nil {
		return nil, err
	}
	thread := &starlark.Thread{Name: "frontmatter"}
	bindings, err := starlark.ExecFile(thread, "frontmatter.flemma", code, predeclared)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(bindings))
	for name, v := range bindings {
		if _, ok := v.(*starlark.Builtin); ok {
			continue // don't leak predeclared builtins back as "results"
		}
		gv, err := fromStarlarkValue(v)
		if err != nil {
			continue // non-representable values (e.g. functions) are silently dropped
		}
		out[name] = gv
	}
	return out, nil
}

// Result is the outcome of evaluating a single expression: either an
// Emittable (its own emit protocol takes over) or a plain stringified
// value.
type Result struct {
	Emittable Emittable
	Text      string
}

// EvalExpression evaluates the source between {{ and }} in the given
// context. Errors are returned verbatim for the processor to convert into
// a diagnostic with the segment's position; the caller is responsible for
// preserving "{{code}}" literally in that case.
func (e *Evaluator) EvalExpression(code string, ctx *Context) (Result, error) {
	predeclared, err := e.predeclared(ctx)
	if err != nil {
		return Result{}, err
	}
	thread := &starlark.Thread{Name: "expression"}
	v, err := starlark.Eval(thread, "expression.flemma", code, predeclared)
	if err != nil {
		return Result{}, err
	}

	if em, ok := v.(Emittable); ok {
		return Result{Emittable: em}, nil
	}

	text, err := stringifyForText(v)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: text}, nil
}
