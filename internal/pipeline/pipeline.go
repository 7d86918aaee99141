// Package pipeline turns a processor.Result into the canonical Prompt a
// provider transport consumes: history, system text, unresolved tool
// calls, and the resolved per-document options.
//
// Grounded on the teacher's internal/agent/transcript_repair.go for the
// tool-pairing reconciliation shape (walk history, track pending ids per
// assistant turn, drop or flag orphans) generalized here into the
// pending_tool_calls diagnostic the spec calls for.
package pipeline

import (
	"strings"

	"github.com/flemma-dev/flemma-core/internal/ast"
	"github.com/flemma-dev/flemma-core/internal/evaluator"
	"github.com/flemma-dev/flemma-core/internal/processor"
)

// HistoryRole is the role name surfaced in Prompt.History, distinct from
// ast.Role so the pipeline's user/assistant vocabulary doesn't leak the
// document's You/Assistant/System spelling into the transport contract.
type HistoryRole string

const (
	HistoryUser      HistoryRole = "user"
	HistoryAssistant HistoryRole = "assistant"
)

// HistoryMessage is one turn of Prompt.History.
type HistoryMessage struct {
	Role  HistoryRole
	Parts []ast.GenericPart
}

// PendingToolCall is an unresolved tool_use surfaced so the transport can
// synthesize a "No result provided" error tool_result.
type PendingToolCall struct {
	ID   string
	Name string
}

// Prompt is the object delivered to the provider transport (§6).
type Prompt struct {
	History          []HistoryMessage
	System           *string
	PendingToolCalls []PendingToolCall
	Opts             *evaluator.ResolvedOpts
}

// Pipeline runs the processor and assembles a Prompt from its output.
type Pipeline struct {
	Processor *processor.Processor
}

// New constructs a Pipeline around the given processor.
func New(p *processor.Processor) *Pipeline {
	return &Pipeline{Processor: p}
}

// Run executes the full processor → prompt assembly for doc, returning
// both the Prompt and the underlying processor.Result (with pipeline
// diagnostics merged in). cancelled reports whether the in-flight request
// producing the document's last assistant message was cancelled before it
// finished, so resolveAbortedMessages below has something real to resolve.
func (pl *Pipeline) Run(doc *ast.Document, base, preEvaluated *evaluator.Context, cancelled bool) (Prompt, processor.Result) {
	result := pl.Processor.Evaluate(doc, base, preEvaluated, cancelled)

	sourceFile := ""
	if base != nil {
		sourceFile = base.Filename
	}

	resolveAbortedMessages(result.Messages)

	var systemParts []string
	history := make([]HistoryMessage, 0, len(result.Messages))
	var allDiags []ast.Diagnostic
	allDiags = append(allDiags, result.Diagnostics...)

	for _, m := range result.Messages {
		switch m.Role {
		case ast.RoleSystem:
			generic, diags := ast.ToGenericParts(m.Parts, sourceFile)
			allDiags = append(allDiags, diags...)
			for _, p := range generic {
				switch p.Kind {
				case ast.PartText:
					systemParts = append(systemParts, p.Text)
				case ast.PartTextFile:
					systemParts = append(systemParts, p.FileText)
				}
			}
			continue
		case ast.RoleYou, ast.RoleAssistant:
			generic, diags := ast.ToGenericParts(m.Parts, sourceFile)
			allDiags = append(allDiags, diags...)
			role := HistoryUser
			if m.Role == ast.RoleAssistant {
				role = HistoryAssistant
			}
			history = append(history, HistoryMessage{Role: role, Parts: generic})
		default:
			// Unrecognized roles are passed through as user turns so nothing
			// a host adds is silently lost.
			generic, diags := ast.ToGenericParts(m.Parts, sourceFile)
			allDiags = append(allDiags, diags...)
			history = append(history, HistoryMessage{Role: HistoryUser, Parts: generic})
		}
	}

	var system *string
	if len(systemParts) > 0 {
		s := strings.TrimSpace(strings.Join(systemParts, "\n"))
		system = &s
	}

	pending, pairingDiags := validateToolPairing(doc, sourceFile)
	allDiags = append(allDiags, pairingDiags...)

	result.Diagnostics = allDiags

	return Prompt{
		History:          history,
		System:           system,
		PendingToolCalls: pending,
		Opts:             result.Opts,
	}, result
}

// resolveAbortedMessages implements §4.6 step 3: historical assistant
// messages drop aborted parts; the last assistant message drops them too
// if it has any tool_use parts (the error is already in the tool_result),
// otherwise converts each into a text comment. Trailing whitespace-only
// text parts are then stripped.
func resolveAbortedMessages(messages []processor.EvaluatedMessage) {
	lastAssistant := -1
	for i, m := range messages {
		if m.Role == ast.RoleAssistant {
			lastAssistant = i
		}
	}

	for i := range messages {
		if messages[i].Role != ast.RoleAssistant {
			continue
		}
		isLast := i == lastAssistant
		hasToolUse := false
		if isLast {
			for _, p := range messages[i].Parts {
				if p.Kind == ast.EvaluatedToolUse {
					hasToolUse = true
					break
				}
			}
		}

		var kept []ast.EvaluatedPart
		for _, p := range messages[i].Parts {
			if !p.Aborted {
				kept = append(kept, p)
				continue
			}
			if !isLast || hasToolUse {
				continue // drop
			}
			kept = append(kept, ast.EvaluatedPart{
				Kind: ast.EvaluatedText,
				Text: "[response truncated: " + p.Text + "]",
			})
		}
		messages[i].Parts = stripTrailingWhitespaceText(kept)
	}
}

func stripTrailingWhitespaceText(parts []ast.EvaluatedPart) []ast.EvaluatedPart {
	for len(parts) > 0 {
		last := parts[len(parts)-1]
		if last.Kind == ast.EvaluatedText && strings.TrimSpace(last.Text) == "" {
			parts = parts[:len(parts)-1]
			continue
		}
		break
	}
	return parts
}

// validateToolPairing walks the raw AST (not the evaluated parts, so that
// dropped placeholder results are visible) recording every tool_use id
// and every resolved tool_result.tool_use_id. Ids with no matching result
// become pending_tool_calls plus a warning diagnostic.
func validateToolPairing(doc *ast.Document, sourceFile string) ([]PendingToolCall, []ast.Diagnostic) {
	type use struct {
		name string
		pos  ast.Position
	}
	uses := map[string]use{}
	var order []string
	resolved := map[string]bool{}

	for _, msg := range doc.Messages {
		for _, seg := range msg.Segments {
			switch seg.Kind {
			case ast.SegmentToolUse:
				if _, seen := uses[seg.ToolUse.ID]; !seen {
					order = append(order, seg.ToolUse.ID)
				}
				uses[seg.ToolUse.ID] = use{name: seg.ToolUse.Name, pos: seg.Pos}
			case ast.SegmentToolResult:
				if seg.ToolResult.Status == nil {
					resolved[seg.ToolResult.ToolUseID] = true
				}
			}
		}
	}

	var pending []PendingToolCall
	var diags []ast.Diagnostic
	for _, id := range order {
		if resolved[id] {
			continue
		}
		u := uses[id]
		pending = append(pending, PendingToolCall{ID: id, Name: u.name})
		pos := u.pos
		diags = append(diags, ast.Diagnostic{
			Type: ast.DiagnosticToolUse, Severity: ast.SeverityWarning,
			Message: "Tool call '" + u.name + "' (" + id + ") has no matching tool result. " +
				"A synthetic 'No result provided' error response will be sent to the API.",
			Pos:        &pos,
			SourceFile: sourceFile,
		})
	}
	return pending, diags
}
