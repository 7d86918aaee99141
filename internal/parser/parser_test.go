package parser

import (
	"strings"
	"testing"

	"github.com/flemma-dev/flemma-core/internal/ast"
)

func lines(s string) []string {
	return strings.Split(s, "\n")
}

func TestParsePlainMessage(t *testing.T) {
	doc := Parse(lines("@You: hello"), nil)
	if len(doc.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(doc.Messages))
	}
	msg := doc.Messages[0]
	if msg.Role != ast.RoleYou {
		t.Errorf("expected role You, got %s", msg.Role)
	}
	if len(msg.Segments) != 1 || msg.Segments[0].Kind != ast.SegmentText || msg.Segments[0].Text != "hello" {
		t.Fatalf("unexpected segments: %+v", msg.Segments)
	}
}

func TestParseFrontmatter(t *testing.T) {
	src := "```json\n{\"name\":\"Ada\"}\n```\n@You: Hi {{name}}!"
	doc := Parse(lines(src), nil)
	if doc.Frontmatter == nil {
		t.Fatal("expected frontmatter to be parsed")
	}
	if doc.Frontmatter.Language != "json" {
		t.Errorf("expected language json, got %s", doc.Frontmatter.Language)
	}
	if len(doc.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(doc.Messages))
	}
	segs := doc.Messages[0].Segments
	if len(segs) != 3 || segs[0].Kind != ast.SegmentText || segs[1].Kind != ast.SegmentExpression || segs[2].Kind != ast.SegmentText {
		t.Fatalf("unexpected segments: %+v", segs)
	}
	if segs[1].Expression != "name" {
		t.Errorf("expected expression 'name', got %q", segs[1].Expression)
	}
}

func TestParseUnclosedFrontmatterIsTreatedAsBody(t *testing.T) {
	src := "```json\n{\"name\":\"Ada\"}\n@You: hi"
	doc := Parse(lines(src), nil)
	if doc.Frontmatter != nil {
		t.Fatal("expected no frontmatter for an unclosed opener")
	}
}

func TestParseFileReferenceWithTrailingPunctuation(t *testing.T) {
	doc := Parse(lines("@You: See @./notes.txt."), nil)
	segs := doc.Messages[0].Segments
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments (text, expression, text), got %d: %+v", len(segs), segs)
	}
	if segs[0].Kind != ast.SegmentText || segs[0].Text != "See " {
		t.Errorf("unexpected first segment: %+v", segs[0])
	}
	if segs[1].Kind != ast.SegmentExpression || !strings.Contains(segs[1].Expression, "include('notes.txt'") {
		t.Errorf("unexpected second segment: %+v", segs[1])
	}
	if segs[2].Kind != ast.SegmentText || segs[2].Text != "." {
		t.Errorf("unexpected third segment: %+v", segs[2])
	}
}

func TestParseToolUseAndToolResult(t *testing.T) {
	src := "@Assistant:\n**Tool Use:** `bash` (`t_1`)\n```json\n{\"cmd\":\"ls\"}\n```\n@You:\n**Tool Result:** `t_1`\n```\na\nb\n```"
	doc := Parse(lines(src), nil)
	if len(doc.Diagnostics) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", doc.Diagnostics)
	}
	if len(doc.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(doc.Messages))
	}
	assistant := doc.Messages[0]
	if len(assistant.Segments) != 1 || assistant.Segments[0].Kind != ast.SegmentToolUse {
		t.Fatalf("expected a single tool_use segment, got %+v", assistant.Segments)
	}
	tu := assistant.Segments[0].ToolUse
	if tu.ID != "t_1" || tu.Name != "bash" {
		t.Errorf("unexpected tool use: %+v", tu)
	}
	you := doc.Messages[1]
	if len(you.Segments) != 1 || you.Segments[0].Kind != ast.SegmentToolResult {
		t.Fatalf("expected a single tool_result segment, got %+v", you.Segments)
	}
	tr := you.Segments[0].ToolResult
	if tr.ToolUseID != "t_1" || tr.Content != "a\nb" || tr.IsError {
		t.Errorf("unexpected tool result: %+v", tr)
	}
}

func TestParseUnclosedToolUseFenceEmitsDiagnostic(t *testing.T) {
	src := "@Assistant:\n**Tool Use:** `bash` (`t_1`)\n```json\n{\"cmd\":\"ls\"}"
	doc := Parse(lines(src), nil)
	if len(doc.Diagnostics) != 1 {
		t.Fatalf("expected 1 diagnostic, got %+v", doc.Diagnostics)
	}
	if doc.Diagnostics[0].Type != ast.DiagnosticToolUse {
		t.Errorf("expected tool_use diagnostic, got %s", doc.Diagnostics[0].Type)
	}
}

func TestParseThinkingBlock(t *testing.T) {
	src := "@Assistant:\n<thinking anthropic:signature=\"abc\">\npondering\n</thinking>\ndone"
	doc := Parse(lines(src), nil)
	segs := doc.Messages[0].Segments
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(segs), segs)
	}
	if segs[0].Kind != ast.SegmentThinking || segs[0].Thinking.Content != "pondering" {
		t.Fatalf("unexpected thinking segment: %+v", segs[0])
	}
	if segs[0].Thinking.Signature == nil || *segs[0].Thinking.Signature != "abc" {
		t.Errorf("expected signature abc, got %+v", segs[0].Thinking.Signature)
	}
}

func TestParseSelfClosingThinkingIsEmpty(t *testing.T) {
	src := "@Assistant:\n<thinking anthropic:signature=\"xyz\" />\nhello"
	doc := Parse(lines(src), nil)
	segs := doc.Messages[0].Segments
	if segs[0].Kind != ast.SegmentThinking || segs[0].Thinking.Content != "" {
		t.Fatalf("expected an empty thinking segment, got %+v", segs[0])
	}
}

func TestParseRoleLinesSyncAfterAnomaly(t *testing.T) {
	src := "@Assistant:\n**Tool Use:** `bash` (`t_1`)\nnot a fence\n@You: next"
	doc := Parse(lines(src), nil)
	if len(doc.Messages) != 2 {
		t.Fatalf("expected parsing to resync at the next role line, got %d messages", len(doc.Messages))
	}
	if doc.Messages[1].Role != ast.RoleYou {
		t.Errorf("expected second message to be You, got %s", doc.Messages[1].Role)
	}
}
