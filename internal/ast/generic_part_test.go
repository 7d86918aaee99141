package ast

import "testing"

func TestToGenericPartsText(t *testing.T) {
	parts := []EvaluatedPart{
		{Kind: EvaluatedText, Text: "hello"},
		{Kind: EvaluatedText, Text: ""},
	}
	out, diags := ToGenericParts(parts, "doc.chat")
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %v", diags)
	}
	if len(out) != 1 {
		t.Fatalf("expected empty text to be dropped, got %d parts", len(out))
	}
	if out[0].Kind != PartText || out[0].Text != "hello" {
		t.Errorf("unexpected part: %+v", out[0])
	}
}

func TestToGenericPartsFileKinds(t *testing.T) {
	cases := []struct {
		name     string
		mime     string
		wantKind GenericPartKind
		wantDiag bool
	}{
		{"image", "image/png", PartImage, false},
		{"pdf", "application/pdf", PartPDF, false},
		{"text", "text/plain", PartTextFile, false},
		{"unsupported", "application/octet-stream", PartUnsupportedFile, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parts := []EvaluatedPart{{Kind: EvaluatedFile_, File: EvaluatedFile{MIME: tc.mime, Data: "payload", Filename: "f"}}}
			out, diags := ToGenericParts(parts, "doc.chat")
			if len(out) != 1 {
				t.Fatalf("expected 1 part, got %d", len(out))
			}
			if out[0].Kind != tc.wantKind {
				t.Errorf("expected kind %v, got %v", tc.wantKind, out[0].Kind)
			}
			if tc.wantDiag && len(diags) != 1 {
				t.Errorf("expected a file diagnostic, got %v", diags)
			}
			if !tc.wantDiag && len(diags) != 0 {
				t.Errorf("expected no diagnostic, got %v", diags)
			}
		})
	}
}

func TestToGenericPartsToolUseAndResultVerbatim(t *testing.T) {
	parts := []EvaluatedPart{
		{Kind: EvaluatedToolUse, ToolUse: ToolUseSegment{ID: "t_1", Name: "bash", Input: map[string]any{"cmd": "ls"}}},
		{Kind: EvaluatedToolResult, ToolResult: ToolResultSegment{ToolUseID: "t_1", Content: "a\nb"}},
	}
	out, _ := ToGenericParts(parts, "doc.chat")
	if len(out) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(out))
	}
	if out[0].ToolUseID != "t_1" || out[0].ToolUseName != "bash" {
		t.Errorf("tool use not preserved verbatim: %+v", out[0])
	}
	if out[1].ToolResultToolUseID != "t_1" || out[1].ToolResultContent != "a\nb" {
		t.Errorf("tool result not preserved verbatim: %+v", out[1])
	}
}
