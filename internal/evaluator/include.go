package evaluator

import (
	"path/filepath"

	"go.starlark.net/starlark"

	"github.com/flemma-dev/flemma-core/internal/ast"
)

// Emittable is carried by an expression result that has its own emit(ctx)
// protocol (§4.4) — used by include() for binary files and structured
// parts. Its emitted parts splice into the evaluated output in place of
// the expression segment, instead of being stringified.
type Emittable interface {
	Emit() ([]ast.EvaluatedPart, error)
}

// IncludeError is the structured error include() may raise; the
// processor converts it into a "file" diagnostic carrying the segment's
// position.
type IncludeError struct {
	Filename string
	Raw      string
	Err      error
}

func (e *IncludeError) Error() string { return e.Err.Error() }
func (e *IncludeError) Unwrap() error { return e.Err }

// includeResult is the Starlark value returned by include(); it is not a
// Starlark class (builtins have no method dispatch beyond built-in
// types), so the Emittable protocol is implemented on this Go-side
// wrapper and recognized by the evaluator after Eval returns.
type includeResult struct {
	file ast.EvaluatedFile
}

var _ starlark.Value = (*includeResult)(nil)
var _ Emittable = (*includeResult)(nil)

func (r *includeResult) String() string        { return "include(" + r.file.Filename + ")" }
func (r *includeResult) Type() string          { return "include_result" }
func (r *includeResult) Freeze()                {}
func (r *includeResult) Truth() starlark.Bool   { return starlark.True }
func (r *includeResult) Hash() (uint32, error)  { return 0, nil }

// Emit implements Emittable: a single evaluated-file part.
func (r *includeResult) Emit() ([]ast.EvaluatedPart, error) {
	return []ast.EvaluatedPart{{Kind: ast.EvaluatedFile_, File: r.file}}, nil
}

// newIncludeBuiltin builds the include(path, binary=False, mime=None)
// Starlark builtin bound to a specific FileSystem and base directory.
func newIncludeBuiltin(fs FileSystem, baseDir string) *starlark.Builtin {
	return starlark.NewBuiltin("include", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var path string
		var binary starlark.Bool
		var mimeOverride starlark.String
		if err := starlark.UnpackArgs("include", args, kwargs,
			"path", &path, "binary?", &binary, "mime?", &mimeOverride); err != nil {
			return nil, err
		}

		data, detected, err := fs.ReadFile(baseDir, path)
		if err != nil {
			return nil, &IncludeError{Filename: path, Raw: err.Error(), Err: err}
		}

		mimeType := detected
		if mimeOverride != "" {
			mimeType = string(mimeOverride)
		}

		return &includeResult{file: ast.EvaluatedFile{
			MIME:     mimeType,
			Data:     string(data),
			Filename: filepath.Base(path),
		}}, nil
	})
}
