package ast

// EvaluatedPartKind tags the variant carried by an EvaluatedPart, the
// processor's intermediate representation between parsed Segments and
// provider-facing GenericParts.
type EvaluatedPartKind int

const (
	EvaluatedText EvaluatedPartKind = iota
	EvaluatedFile_
	EvaluatedThinking
	EvaluatedToolUse
	EvaluatedToolResult
)

// EvaluatedPart is produced by folding a message's segments through the
// expression evaluator: expressions are resolved, file references are
// materialized, everything else passes through verbatim.
type EvaluatedPart struct {
	Kind EvaluatedPartKind

	Text string // EvaluatedText

	File EvaluatedFile // EvaluatedFile_

	Thinking ThinkingSegment // EvaluatedThinking

	ToolUse ToolUseSegment // EvaluatedToolUse

	ToolResult ToolResultSegment // EvaluatedToolResult

	// Aborted marks a part produced by a cancelled/truncated response; the
	// pipeline's abort-resolution step inspects and strips these.
	Aborted bool
}
