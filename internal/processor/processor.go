// Package processor folds a parsed Document's segments through the
// expression evaluator into EvaluatedParts per message, running
// frontmatter exactly once and collecting diagnostics along the way. The
// processor never performs I/O itself — file reads happen through
// include() inside the evaluator.
package processor

import (
	"errors"

	"github.com/flemma-dev/flemma-core/internal/ast"
	"github.com/flemma-dev/flemma-core/internal/codeblock"
	"github.com/flemma-dev/flemma-core/internal/evaluator"
)

// EvaluatedMessage pairs a message's role with its folded parts.
type EvaluatedMessage struct {
	Role  ast.Role
	Parts []ast.EvaluatedPart
}

// Result is the processor's output: evaluated messages, accumulated
// diagnostics, and the resolved per-document options (nil if no
// frontmatter ran).
type Result struct {
	Messages    []EvaluatedMessage
	Diagnostics []ast.Diagnostic
	Opts        *evaluator.ResolvedOpts
}

// Processor runs the evaluator over a parsed document.
type Processor struct {
	Eval     *evaluator.Evaluator
	Registry *codeblock.Registry
}

// New constructs a Processor. A nil registry defaults to the package
// default (json + the evaluator language, once RegisterInto has been
// called by the caller's setup).
func New(eval *evaluator.Evaluator, registry *codeblock.Registry) *Processor {
	if registry == nil {
		registry = codeblock.NewDefaultRegistry()
	}
	return &Processor{Eval: eval, Registry: registry}
}

// Evaluate runs the document through frontmatter resolution and segment
// folding. preEvaluated, when non-nil, is reused in place of re-running
// frontmatter (the pipeline's caller may have cached it). cancelled marks
// every part of the last assistant message Aborted, for a caller that
// knows the in-flight response producing that message was cut short
// (§4.6 step 3's abort-resolution logic consumes this downstream).
func (p *Processor) Evaluate(doc *ast.Document, base *evaluator.Context, preEvaluated *evaluator.Context, cancelled bool) Result {
	var diags []ast.Diagnostic
	ctx := base
	if ctx == nil {
		ctx = evaluator.NewContext("")
	}

	var opts *evaluator.ResolvedOpts
	if preEvaluated != nil {
		ctx = preEvaluated
		o := ctx.Opts
		opts = &o
	} else if doc.Frontmatter != nil {
		parsed, err := p.Registry.Parse(doc.Frontmatter.Language, doc.Frontmatter.Source, ctx)
		vars, isMap := parsed.(map[string]any)
		if err != nil {
			diags = append(diags, ast.Diagnostic{
				Type: ast.DiagnosticFrontmatter, Severity: ast.SeverityError,
				Message: "frontmatter failed to execute: " + err.Error(),
				Pos:     &doc.Frontmatter.Pos,
			})
		} else if !isMap {
			diags = append(diags, ast.Diagnostic{
				Type: ast.DiagnosticFrontmatter, Severity: ast.SeverityWarning,
				Message: "frontmatter did not produce a key/value map",
				Pos:     &doc.Frontmatter.Pos,
			})
		} else {
			ctx = ctx.Extend(vars)
			resolved := resolveOpts(vars)
			ctx = ctx.WithOpts(resolved)
			opts = &resolved
		}
	}

	messages := make([]EvaluatedMessage, 0, len(doc.Messages))
	for _, msg := range doc.Messages {
		parts, msgDiags := p.evaluateMessage(msg, ctx)
		diags = append(diags, msgDiags...)
		messages = append(messages, EvaluatedMessage{Role: msg.Role, Parts: parts})
	}

	if cancelled {
		markLastAssistantAborted(messages)
	}

	return Result{Messages: messages, Diagnostics: diags, Opts: opts}
}

// markLastAssistantAborted flags every part of the last assistant message
// as Aborted, for a caller reporting that the request which produced it
// was cancelled before the response finished.
func markLastAssistantAborted(messages []EvaluatedMessage) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != ast.RoleAssistant {
			continue
		}
		for j := range messages[i].Parts {
			messages[i].Parts[j].Aborted = true
		}
		return
	}
}

func (p *Processor) evaluateMessage(msg *ast.Message, ctx *evaluator.Context) ([]ast.EvaluatedPart, []ast.Diagnostic) {
	var parts []ast.EvaluatedPart
	var diags []ast.Diagnostic

	for _, seg := range msg.Segments {
		switch seg.Kind {
		case ast.SegmentText:
			if seg.Text != "" {
				parts = append(parts, ast.EvaluatedPart{Kind: ast.EvaluatedText, Text: seg.Text})
			}

		case ast.SegmentThinking:
			parts = append(parts, ast.EvaluatedPart{Kind: ast.EvaluatedThinking, Thinking: seg.Thinking})

		case ast.SegmentToolUse:
			parts = append(parts, ast.EvaluatedPart{Kind: ast.EvaluatedToolUse, ToolUse: seg.ToolUse})
			if diag := p.validateToolUseSchema(seg, ctx, msg.Role); diag != nil {
				diags = append(diags, *diag)
			}

		case ast.SegmentToolResult:
			if seg.ToolResult.Status != nil {
				// unresolved placeholder: dropped, pipeline surfaces the gap.
				continue
			}
			parts = append(parts, ast.EvaluatedPart{Kind: ast.EvaluatedToolResult, ToolResult: seg.ToolResult})

		case ast.SegmentExpression:
			evalParts, evalDiags := p.evaluateExpression(seg, ctx, msg.Role)
			parts = append(parts, evalParts...)
			diags = append(diags, evalDiags...)
		}
	}

	// Adjacent text parts (e.g. text around an expression) are merged.
	merged := parts[:0]
	for _, part := range parts {
		if n := len(merged); n > 0 && part.Kind == ast.EvaluatedText && merged[n-1].Kind == ast.EvaluatedText {
			merged[n-1].Text += part.Text
			continue
		}
		merged = append(merged, part)
	}
	return merged, diags
}

func (p *Processor) evaluateExpression(seg ast.Segment, ctx *evaluator.Context, role ast.Role) ([]ast.EvaluatedPart, []ast.Diagnostic) {
	res, err := p.Eval.EvalExpression(seg.Expression, ctx)
	if err != nil {
		diag := diagnosticForEvalError(err, seg, role)
		return []ast.EvaluatedPart{{Kind: ast.EvaluatedText, Text: "{{" + seg.Expression + "}}"}}, []ast.Diagnostic{diag}
	}

	if res.Emittable != nil {
		emitted, err := res.Emittable.Emit()
		if err != nil {
			diag := diagnosticForEvalError(err, seg, role)
			return []ast.EvaluatedPart{{Kind: ast.EvaluatedText, Text: "{{" + seg.Expression + "}}"}}, []ast.Diagnostic{diag}
		}
		return emitted, nil
	}

	if res.Text == "" {
		return nil, nil
	}
	return []ast.EvaluatedPart{{Kind: ast.EvaluatedText, Text: res.Text}}, nil
}

// validateToolUseSchema checks a tool-use segment's input against the
// registry's schema for its tool name, when that tool is declared in
// the document's resolved `tools` opt and a schema is actually
// registered for it (§4.2 expansion). A mismatch is reported as a
// tool_use diagnostic, never a panic, per §4.2's parse-error contract.
func (p *Processor) validateToolUseSchema(seg ast.Segment, ctx *evaluator.Context, role ast.Role) *ast.Diagnostic {
	name := seg.ToolUse.Name
	if !containsTool(ctx.Opts.Tools, name) {
		return nil
	}
	schema, ok := p.Registry.Schema(name)
	if !ok {
		return nil
	}
	if err := schema.Validate(seg.ToolUse.Input); err != nil {
		return &ast.Diagnostic{
			Type: ast.DiagnosticToolUse, Severity: ast.SeverityWarning,
			Message:     "tool input failed schema validation: " + err.Error(),
			Language:    name,
			MessageRole: role,
			Pos:         &seg.Pos,
		}
	}
	return nil
}

func containsTool(tools []string, name string) bool {
	for _, t := range tools {
		if t == name {
			return true
		}
	}
	return false
}

func diagnosticForEvalError(err error, seg ast.Segment, role ast.Role) ast.Diagnostic {
	var ie *evaluator.IncludeError
	if errors.As(err, &ie) {
		return ast.Diagnostic{
			Type: ast.DiagnosticFile, Severity: ast.SeverityWarning,
			Message: ie.Error(), Filename: ie.Filename, Raw: ie.Raw,
			Pos: &seg.Pos, MessageRole: role, Expression: seg.Expression,
		}
	}
	return ast.Diagnostic{
		Type: ast.DiagnosticExpression, Severity: ast.SeverityWarning,
		Message: err.Error(), Expression: seg.Expression,
		Pos: &seg.Pos, MessageRole: role,
	}
}

// resolveOpts lifts well-known keys out of the frontmatter variable map
// into the opaque ResolvedOpts record threaded through the pipeline (§6).
func resolveOpts(vars map[string]any) evaluator.ResolvedOpts {
	var opts evaluator.ResolvedOpts
	if v, ok := vars["autopilot"].(bool); ok {
		opts.Autopilot = &v
	}
	if v, ok := vars["tools"].([]any); ok {
		for _, t := range v {
			if s, ok := t.(string); ok {
				opts.Tools = append(opts.Tools, s)
			}
		}
	}
	if v, ok := vars["auto_approve"]; ok {
		opts.AutoApprove = v
	}
	if v, ok := vars["sandbox"].(map[string]any); ok {
		opts.Sandbox = v
	}
	provider := make(map[string]any)
	for _, k := range []string{"model", "temperature", "max_tokens", "top_p"} {
		if v, ok := vars[k]; ok {
			provider[k] = v
		}
	}
	if len(provider) > 0 {
		opts.ProviderParams = provider
	}
	return opts
}
