package ast

// DiagnosticType is the structured error taxonomy from the error handling
// design: every diagnostic is carried, never thrown.
type DiagnosticType string

const (
	DiagnosticFrontmatter DiagnosticType = "frontmatter"
	DiagnosticExpression  DiagnosticType = "expression"
	DiagnosticFile        DiagnosticType = "file"
	DiagnosticToolUse     DiagnosticType = "tool_use"
	DiagnosticToolResult  DiagnosticType = "tool_result"
	DiagnosticParse       DiagnosticType = "parse"
)

// Severity distinguishes hard failures from soft ones; neither ever stops
// parsing or evaluation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic carries enough context for the editor to surface it at a
// source span without needing to re-derive anything from the AST.
type Diagnostic struct {
	ID          string
	Type        DiagnosticType
	Severity    Severity
	Message     string
	Pos         *Position
	Language    string
	Expression  string
	Filename    string
	Raw         string
	MessageRole Role
	SourceFile  string
}
