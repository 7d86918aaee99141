package ast

import (
	"encoding/base64"
	"strings"
)

// GenericPartKind tags the variant carried by a GenericPart.
type GenericPartKind int

const (
	PartText GenericPartKind = iota
	PartImage
	PartPDF
	PartTextFile
	PartUnsupportedFile
	PartThinking
	PartToolUse
	PartToolResult
)

// GenericPart is the canonical representation a provider transport
// consumes. Exactly one of the payload fields is meaningful, selected by
// Kind. Binary payloads carry both raw base64 Data and a DataURL mirror.
type GenericPart struct {
	Kind GenericPartKind

	Text string // PartText

	MIME     string // PartImage, PartPDF, PartTextFile
	Data     string // PartImage, PartPDF: base64
	DataURL  string // PartImage, PartPDF: "data:<mime>;base64,<data>"
	FileText string // PartTextFile: raw (not encoded) text
	Filename string // PartImage, PartPDF, PartTextFile, PartUnsupportedFile

	ThinkingContent   string  // PartThinking
	ThinkingSignature *string // PartThinking

	ToolUseID    string // PartToolUse
	ToolUseName  string // PartToolUse
	ToolUseInput any    // PartToolUse

	ToolResultToolUseID string // PartToolResult
	ToolResultContent   string // PartToolResult
	ToolResultIsError   bool   // PartToolResult
}

// EvaluatedFile is the processor's output for a materialized file
// reference, prior to generic-part conversion.
type EvaluatedFile struct {
	MIME     string
	Data     string // raw bytes as a string; encoded to base64 only for binary kinds
	Filename string
}

// ToGenericParts converts the processor's evaluated parts into the
// canonical representation a provider transport consumes, collecting any
// additional diagnostics raised during conversion (currently only the
// "file" warning for unsupported mime types).
func ToGenericParts(parts []EvaluatedPart, sourceFile string) ([]GenericPart, []Diagnostic) {
	out := make([]GenericPart, 0, len(parts))
	var diags []Diagnostic

	for _, p := range parts {
		switch p.Kind {
		case EvaluatedText:
			if len(p.Text) > 0 {
				out = append(out, GenericPart{Kind: PartText, Text: p.Text})
			}
		case EvaluatedFile_:
			out = append(out, genericPartForFile(p.File, sourceFile, &diags))
		case EvaluatedThinking:
			out = append(out, GenericPart{
				Kind:              PartThinking,
				ThinkingContent:   p.Thinking.Content,
				ThinkingSignature: p.Thinking.Signature,
			})
		case EvaluatedToolUse:
			out = append(out, GenericPart{
				Kind:         PartToolUse,
				ToolUseID:    p.ToolUse.ID,
				ToolUseName:  p.ToolUse.Name,
				ToolUseInput: p.ToolUse.Input,
			})
		case EvaluatedToolResult:
			out = append(out, GenericPart{
				Kind:                PartToolResult,
				ToolResultToolUseID: p.ToolResult.ToolUseID,
				ToolResultContent:   p.ToolResult.Content,
				ToolResultIsError:   p.ToolResult.IsError,
			})
		}
	}
	return out, diags
}

func genericPartForFile(f EvaluatedFile, sourceFile string, diags *[]Diagnostic) GenericPart {
	switch {
	case strings.HasPrefix(f.MIME, "image/"):
		enc := base64.StdEncoding.EncodeToString([]byte(f.Data))
		return GenericPart{
			Kind: PartImage, MIME: f.MIME, Data: enc,
			DataURL: "data:" + f.MIME + ";base64," + enc, Filename: f.Filename,
		}
	case f.MIME == "application/pdf":
		enc := base64.StdEncoding.EncodeToString([]byte(f.Data))
		return GenericPart{
			Kind: PartPDF, MIME: f.MIME, Data: enc,
			DataURL: "data:" + f.MIME + ";base64," + enc, Filename: f.Filename,
		}
	case strings.HasPrefix(f.MIME, "text/"):
		return GenericPart{Kind: PartTextFile, MIME: f.MIME, FileText: f.Data, Filename: f.Filename}
	default:
		*diags = append(*diags, Diagnostic{
			Type: DiagnosticFile, Severity: SeverityWarning,
			Message:    "unsupported file type " + f.MIME + " for " + f.Filename,
			Filename:   f.Filename,
			SourceFile: sourceFile,
		})
		return GenericPart{Kind: PartUnsupportedFile, Filename: f.Filename}
	}
}
