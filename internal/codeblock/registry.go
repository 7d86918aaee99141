// Package codeblock provides a pluggable registry of parsers for fenced
// code blocks, keyed by case-insensitive language tag. It is consulted by
// the parser for tool-use inputs and tool-result bodies, and by the
// processor for frontmatter.
//
// Grounded on the teacher's plugin-registry style
// (internal/agent/tool_registry.go: a name-keyed map guarded by a mutex,
// Register/Get/Execute).
package codeblock

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// EvalContext is the subset of evaluation context a codeblock parser may
// consult. Parsers never perform I/O; nil is a valid EvalContext for
// parsers that ignore it (e.g. the json parser).
type EvalContext any

// Parser parses fenced-block source code into a value, or returns an
// error. Parsers must not perform I/O; a parse error is reported to the
// caller as a diagnostic, never a panic.
type Parser func(code string, ctx EvalContext) (any, error)

// Registry is a mapping from case-insensitive language tag to Parser. A
// tool name may additionally carry a compiled JSON Schema used to
// validate its tool-use input (§4.2 expansion).
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
	schemas map[string]*jsonschema.Schema
}

// NewRegistry returns an empty registry. Callers typically follow with
// RegisterDefaults.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser), schemas: make(map[string]*jsonschema.Schema)}
}

// NewDefaultRegistry returns a registry pre-populated with the built-in
// "json" parser. The evaluator-language parser is registered separately
// by the evaluator package, which depends on this one and not vice versa.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("json", ParseJSON)
	return r
}

// Register installs a parser under the given language tag, replacing any
// prior registration for the same (case-insensitive) tag.
func (r *Registry) Register(language string, p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[normalize(language)] = p
}

// Unregister removes any parser registered for the given language tag.
func (r *Registry) Unregister(language string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.parsers, normalize(language))
}

// Get returns the parser registered for the given language tag, if any.
func (r *Registry) Get(language string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[normalize(language)]
	return p, ok
}

// Parse looks up the parser for language and invokes it. If no parser is
// registered, it returns an error naming the missing language; callers
// decide whether that becomes a diagnostic or a verbatim fallback.
func (r *Registry) Parse(language, code string, ctx EvalContext) (any, error) {
	p, ok := r.Get(language)
	if !ok {
		return nil, fmt.Errorf("no codeblock parser registered for language %q", language)
	}
	return p(code, ctx)
}

// RegisterSchema compiles schemaJSON and associates it with toolName, so
// a tool-use input named toolName can be validated against it when the
// tool is listed in a document's resolved `tools` opt. Replaces any
// prior schema registered for the same name.
func (r *Registry) RegisterSchema(toolName, schemaJSON string) error {
	compiler := jsonschema.NewCompiler()
	resourceName := toolName + ".schema.json"
	if err := compiler.AddResource(resourceName, strings.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(resourceName)
	if err != nil {
		return fmt.Errorf("compile schema for %q: %w", toolName, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[toolName] = schema
	return nil
}

// Schema returns the schema registered for toolName, if any.
func (r *Registry) Schema(toolName string) (*jsonschema.Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[toolName]
	return s, ok
}

func normalize(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}

// ParseJSON is the built-in "json" parser: strict JSON decode into a
// generic Go value (map[string]any, []any, or a scalar).
func ParseJSON(code string, _ EvalContext) (any, error) {
	var v any
	dec := json.NewDecoder(strings.NewReader(code))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	return v, nil
}
