// Package ast defines the typed document model for a Flemma chat file:
// frontmatter, role-prefixed messages, segments, diagnostics, and the
// generic-part representation handed to a provider transport.
package ast

import "github.com/google/uuid"

// Role identifies the author of a Message.
type Role string

const (
	RoleYou       Role = "You"
	RoleAssistant Role = "Assistant"
	RoleSystem    Role = "System"
)

// Position is a document-coordinate span, 1-based lines and columns.
type Position struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Frontmatter is the optional fenced block at the top of a document whose
// execution yields context variables.
type Frontmatter struct {
	Language string
	Source   string
	Pos      Position
}

// Document is the root AST node. Messages appear in source order;
// diagnostics are additive and never mutated after emission.
type Document struct {
	ID          string
	Frontmatter *Frontmatter
	Messages    []*Message
	Diagnostics []Diagnostic
	Pos         Position
}

// NewDocument allocates an empty document with a fresh id.
func NewDocument() *Document {
	return &Document{ID: uuid.NewString()}
}

// AddDiagnostic appends a diagnostic. Diagnostics are never removed or
// rewritten once added.
func (d *Document) AddDiagnostic(diag Diagnostic) {
	if diag.ID == "" {
		diag.ID = uuid.NewString()
	}
	d.Diagnostics = append(d.Diagnostics, diag)
}

// Message is a role-prefixed span containing an ordered sequence of
// segments.
type Message struct {
	Role     Role
	Segments []Segment
	Pos      Position
}

// SegmentKind tags the variant carried by a Segment.
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentExpression
	SegmentThinking
	SegmentToolUse
	SegmentToolResult
)

// Segment is a tagged variant of the five kinds a message may contain.
// Exactly one of the Text/Expression/Thinking/ToolUse/ToolResult fields
// is populated, selected by Kind.
type Segment struct {
	Kind SegmentKind
	Pos  Position

	Text string // SegmentText

	Expression string // SegmentExpression: source between {{ and }}

	Thinking ThinkingSegment // SegmentThinking

	ToolUse ToolUseSegment // SegmentToolUse

	ToolResult ToolResultSegment // SegmentToolResult
}

// ThinkingSegment is the content of a <thinking>...</thinking> block.
// Signature is a provider-opaque attestation string, present only when
// the source tag carried one.
type ThinkingSegment struct {
	Content   string
	Signature *string
}

// ToolUseSegment is a fenced JSON block following a
// "**Tool Use:** `name` (`id`)" header.
type ToolUseSegment struct {
	ID    string
	Name  string
	Input any
}

// ToolResultSegment is a fenced block following a
// "**Tool Result:** `id` [(error)]" header. Status marks an unresolved
// placeholder result (not yet executed); its vocabulary is owned by the
// executor, the core only tests whether it is set (non-nil).
type ToolResultSegment struct {
	ToolUseID string
	Content   string
	IsError   bool
	Status    *string
}

// TextSegment constructs a text segment; callers should drop empty ones.
func TextSegment(pos Position, v string) Segment {
	return Segment{Kind: SegmentText, Pos: pos, Text: v}
}

// ExpressionSegment constructs an expression segment.
func ExpressionSegment(pos Position, code string) Segment {
	return Segment{Kind: SegmentExpression, Pos: pos, Expression: code}
}

// ThinkingSegmentNode constructs a thinking segment.
func ThinkingSegmentNode(pos Position, content string, signature *string) Segment {
	return Segment{Kind: SegmentThinking, Pos: pos, Thinking: ThinkingSegment{Content: content, Signature: signature}}
}

// ToolUseSegmentNode constructs a tool-use segment.
func ToolUseSegmentNode(pos Position, id, name string, input any) Segment {
	return Segment{Kind: SegmentToolUse, Pos: pos, ToolUse: ToolUseSegment{ID: id, Name: name, Input: input}}
}

// ToolResultSegmentNode constructs a tool-result segment.
func ToolResultSegmentNode(pos Position, toolUseID, content string, isError bool, status *string) Segment {
	return Segment{Kind: SegmentToolResult, Pos: pos, ToolResult: ToolResultSegment{
		ToolUseID: toolUseID, Content: content, IsError: isError, Status: status,
	}}
}
