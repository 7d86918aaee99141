package processor

import (
	"strings"
	"testing"

	"github.com/flemma-dev/flemma-core/internal/ast"
	"github.com/flemma-dev/flemma-core/internal/codeblock"
	"github.com/flemma-dev/flemma-core/internal/evaluator"
	"github.com/flemma-dev/flemma-core/internal/parser"
)

func parse(src string) *ast.Document {
	return parser.Parse(strings.Split(src, "\n"), codeblock.NewDefaultRegistry())
}

func TestEvaluateFrontmatterVariableSubstitution(t *testing.T) {
	doc := parse("```json\n{\"name\":\"Ada\"}\n```\n@You: Hi {{name}}!")
	p := New(evaluator.New(nil), nil)
	res := p.Evaluate(doc, nil, nil, false)

	if len(res.Diagnostics) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", res.Diagnostics)
	}
	if len(res.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(res.Messages))
	}
	parts := res.Messages[0].Parts
	var text strings.Builder
	for _, p := range parts {
		if p.Kind == ast.EvaluatedText {
			text.WriteString(p.Text)
		}
	}
	if text.String() != "Hi Ada!" {
		t.Errorf("expected 'Hi Ada!', got %q", text.String())
	}
}

func TestEvaluateExpressionErrorPreservesLiteral(t *testing.T) {
	doc := parse("@You: {{undeclared_name}}")
	p := New(evaluator.New(nil), nil)
	res := p.Evaluate(doc, nil, nil, false)

	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Type != ast.DiagnosticExpression {
		t.Fatalf("expected 1 expression diagnostic, got %+v", res.Diagnostics)
	}
	parts := res.Messages[0].Parts
	if len(parts) != 1 || parts[0].Text != "{{undeclared_name}}" {
		t.Fatalf("expected the literal expression to be preserved, got %+v", parts)
	}
}

func TestEvaluateDropsUnresolvedToolResultPlaceholder(t *testing.T) {
	status := "pending"
	doc := &ast.Document{
		Messages: []*ast.Message{
			{Role: ast.RoleYou, Segments: []ast.Segment{
				ast.ToolResultSegmentNode(ast.Position{}, "t_1", "", false, &status),
			}},
		},
	}
	p := New(evaluator.New(nil), nil)
	res := p.Evaluate(doc, nil, nil, false)
	if len(res.Messages[0].Parts) != 0 {
		t.Fatalf("expected placeholder tool_result to be dropped, got %+v", res.Messages[0].Parts)
	}
}

const bashSchema = `{
	"type": "object",
	"required": ["cmd"],
	"properties": {
		"cmd": {"type": "string"}
	}
}`

func TestEvaluateReportsToolUseSchemaViolationAsDiagnostic(t *testing.T) {
	reg := codeblock.NewDefaultRegistry()
	if err := reg.RegisterSchema("bash", bashSchema); err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}
	doc := parser.Parse(strings.Split(
		"```json\n{\"tools\":[\"bash\"]}\n```\n@Assistant: run it\n**Tool Use:** `bash` (`t_1`)\n```json\n{}\n```\n", "\n"),
		reg)

	p := New(evaluator.New(nil), reg)
	res := p.Evaluate(doc, nil, nil, false)

	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Type != ast.DiagnosticToolUse {
		t.Fatalf("expected 1 tool_use diagnostic, got %+v", res.Diagnostics)
	}

	var toolUseParts int
	for _, m := range res.Messages {
		for _, p := range m.Parts {
			if p.Kind == ast.EvaluatedToolUse {
				toolUseParts++
			}
		}
	}
	if toolUseParts != 1 {
		t.Fatalf("expected the tool_use part to still be emitted despite the schema violation, got %d", toolUseParts)
	}
}

func TestEvaluateToolUseNotListedInToolsSkipsValidation(t *testing.T) {
	reg := codeblock.NewDefaultRegistry()
	if err := reg.RegisterSchema("bash", bashSchema); err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}
	doc := parser.Parse(strings.Split(
		"@Assistant: run it\n**Tool Use:** `bash` (`t_1`)\n```json\n{}\n```\n", "\n"),
		reg)

	p := New(evaluator.New(nil), reg)
	res := p.Evaluate(doc, nil, nil, false)

	if len(res.Diagnostics) != 0 {
		t.Fatalf("expected no diagnostics when bash isn't in the resolved tools opt, got %+v", res.Diagnostics)
	}
}

func TestEvaluateCancelledMarksLastAssistantMessagePartsAborted(t *testing.T) {
	doc := parse("@You: hi\n@Assistant: partial answer")
	p := New(evaluator.New(nil), nil)
	res := p.Evaluate(doc, nil, nil, true)

	if len(res.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(res.Messages))
	}
	for _, part := range res.Messages[0].Parts {
		if part.Aborted {
			t.Fatalf("expected the You message to be untouched by cancellation, got %+v", res.Messages[0].Parts)
		}
	}
	for _, part := range res.Messages[1].Parts {
		if !part.Aborted {
			t.Fatalf("expected every part of the last assistant message to be aborted, got %+v", res.Messages[1].Parts)
		}
	}
}
