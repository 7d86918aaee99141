package evaluator

// ResolvedOpts are the per-document options resolved from frontmatter,
// threaded opaquely through the pipeline (§6 "Options"). AutoApprove holds
// the frontmatter's raw auto_approve value; the runtime's frontmatter
// policy honours a bool or a list of tool-name strings and defers on
// anything else. Frontmatter bindings with no Go equivalent, such as
// functions, are dropped before they reach it.
type ResolvedOpts struct {
	Autopilot      *bool
	Tools          []string
	AutoApprove    any
	Sandbox        map[string]any
	ProviderParams map[string]any
}

// Context is the immutable-by-clone record flowing through evaluation:
// filename, user variables, and resolved opts. It is created per
// evaluation pass and cloned on extension so sibling evaluations never
// see each other's mutations (§9 "Context cloning").
//
// Rather than the source's deep-copy-on-extend, Context here is an
// explicit record extended via Extend, which always returns a new value
// sharing the unmodified parts of the variable map (copy-on-write on the
// top-level map only — variable values themselves are never mutated in
// place by this package).
type Context struct {
	Filename  string
	Variables map[string]any
	Opts      ResolvedOpts
}

// NewContext creates a root context for the given source file path (empty
// for an unnamed/in-memory document).
func NewContext(filename string) *Context {
	return &Context{Filename: filename, Variables: map[string]any{}}
}

// Extend returns a clone of c with vars merged over its existing
// variables. The receiver is never mutated.
func (c *Context) Extend(vars map[string]any) *Context {
	merged := make(map[string]any, len(c.Variables)+len(vars))
	for k, v := range c.Variables {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}
	return &Context{Filename: c.Filename, Variables: merged, Opts: c.Opts}
}

// WithOpts returns a clone of c carrying the given resolved opts.
func (c *Context) WithOpts(opts ResolvedOpts) *Context {
	return &Context{Filename: c.Filename, Variables: c.Variables, Opts: opts}
}

// Clone returns a shallow copy of c; the variable map is shared until the
// first Extend call on either copy (copy-on-extend).
func (c *Context) Clone() *Context {
	return &Context{Filename: c.Filename, Variables: c.Variables, Opts: c.Opts}
}
