// Package parser implements the tolerant, line-oriented parser from raw
// chat-document text to the ast.Document model. It never fails: every
// structural anomaly becomes a diagnostic and parsing resumes at the next
// safe sync point (the next role line).
//
// Grounded on the teacher's internal/markdown/tables.go: a compiled-regex,
// line-index-tracking scan that degrades to "not a table" rather than
// erroring, generalized here to a multi-construct grammar.
package parser

import (
	"regexp"
	"strings"

	"github.com/flemma-dev/flemma-core/internal/ast"
	"github.com/flemma-dev/flemma-core/internal/codeblock"
)

var (
	frontmatterOpenRe = regexp.MustCompile("^```(\\w+)$")
	roleLineRe        = regexp.MustCompile(`^@(\w+):(.*)$`)
	thinkingOpenRe    = regexp.MustCompile(`^<thinking>$`)
	thinkingSigOpenRe = regexp.MustCompile(`^<thinking\s+\w+:signature="([^"]*)"\s*>$`)
	thinkingSelfRe    = regexp.MustCompile(`^<thinking\s+\w+:signature="([^"]*)"\s*/>$`)
	thinkingCloseRe   = regexp.MustCompile(`^</thinking>$`)
	toolUseHeaderRe   = regexp.MustCompile("^\\*\\*Tool Use:\\*\\*\\s*`([^`]+)`\\s*\\(`([^`]+)`\\)\\s*$")
	toolResultHeadRe  = regexp.MustCompile("^\\*\\*Tool Result:\\*\\*\\s*`([^`]+)`(\\s*\\(error\\))?\\s*$")
)

// Parse turns raw lines (no trailing newline on any element) into a
// Document. Parsing never fails.
func Parse(lines []string, registry *codeblock.Registry) *ast.Document {
	if registry == nil {
		registry = codeblock.NewDefaultRegistry()
	}
	doc := ast.NewDocument()
	doc.Pos = ast.Position{StartLine: 1, EndLine: len(lines)}

	bodyStart := 0
	if len(lines) > 0 {
		if m := frontmatterOpenRe.FindStringSubmatch(lines[0]); m != nil {
			closeIdx := -1
			for i := 1; i < len(lines); i++ {
				if lines[i] == "```" {
					closeIdx = i
					break
				}
			}
			if closeIdx != -1 {
				doc.Frontmatter = &ast.Frontmatter{
					Language: m[1],
					Source:   joinLines(lines[1:closeIdx]),
					Pos:      ast.Position{StartLine: 1, EndLine: closeIdx + 1},
				}
				bodyStart = closeIdx + 1
			}
		}
	}

	p := &parseState{lines: lines, registry: registry, doc: doc}
	p.parseBody(bodyStart)

	return doc
}

type parseState struct {
	lines    []string
	registry *codeblock.Registry
	doc      *ast.Document
}

// parseBody scans for role lines and dispatches each message's body to
// the role-appropriate segment scanner.
func (p *parseState) parseBody(start int) {
	i := start
	for i < len(p.lines) {
		m := roleLineRe.FindStringSubmatch(p.lines[i])
		if m == nil {
			i++
			continue
		}
		role := ast.Role(m[1])
		firstContent := strings.TrimLeft(m[2], " \t")
		msgStartLine := i + 1 // 1-based

		bodyLines := []string{firstContent}
		j := i + 1
		for j < len(p.lines) {
			if roleLineRe.MatchString(p.lines[j]) {
				break
			}
			bodyLines = append(bodyLines, p.lines[j])
			j++
		}
		msgEndLine := j // last line belonging to this message is j (1-based), i.e. index j-1

		msg := &ast.Message{
			Role: role,
			Pos:  ast.Position{StartLine: msgStartLine, EndLine: msgEndLine},
		}
		p.parseMessageSegments(msg, bodyLines, msgStartLine)
		p.doc.Messages = append(p.doc.Messages, msg)

		i = j
	}
}

func (p *parseState) parseMessageSegments(msg *ast.Message, bodyLines []string, startLine int) {
	switch msg.Role {
	case ast.RoleAssistant:
		p.scanAssistant(msg, bodyLines, startLine)
	case ast.RoleYou:
		p.scanYou(msg, bodyLines, startLine)
	default:
		text := joinLines(bodyLines)
		msg.Segments = scanInline(text, startLine)
	}
}

// scanAssistant implements §4.3's Assistant branch: thinking blocks and
// tool-use headers are recognized line by line; everything else is
// literal text (no inline expression scanning in assistant output).
func (p *parseState) scanAssistant(msg *ast.Message, lines []string, startLine int) {
	i := 0
	var textBuf []string
	textStart := startLine

	flushText := func(endLineExclusive int) {
		if len(textBuf) == 0 {
			return
		}
		joined := joinLines(textBuf)
		if joined != "" {
			msg.Segments = append(msg.Segments, ast.TextSegment(
				ast.Position{StartLine: textStart, EndLine: endLineExclusive - 1}, joined))
		}
		textBuf = nil
	}

	for i < len(lines) {
		lineNo := startLine + i
		line := lines[i]

		if thinkingSelfRe.MatchString(line) {
			flushText(lineNo)
			sig := thinkingSelfRe.FindStringSubmatch(line)[1]
			msg.Segments = append(msg.Segments, ast.ThinkingSegmentNode(
				ast.Position{StartLine: lineNo, EndLine: lineNo}, "", &sig))
			i++
			textStart = startLine + i
			continue
		}

		if thinkingOpenRe.MatchString(line) || thinkingSigOpenRe.MatchString(line) {
			flushText(lineNo)
			var sig *string
			if m := thinkingSigOpenRe.FindStringSubmatch(line); m != nil {
				s := m[1]
				sig = &s
			}
			closeIdx := -1
			for k := i + 1; k < len(lines); k++ {
				if thinkingCloseRe.MatchString(lines[k]) {
					closeIdx = k
					break
				}
			}
			if closeIdx == -1 {
				p.doc.AddDiagnostic(ast.Diagnostic{
					Type: ast.DiagnosticParse, Severity: ast.SeverityWarning,
					Message:     "unclosed thinking block",
					MessageRole: msg.Role,
					Pos:         &ast.Position{StartLine: lineNo, EndLine: lineNo},
				})
				i = len(lines)
				break
			}
			content := joinLines(lines[i+1 : closeIdx])
			msg.Segments = append(msg.Segments, ast.ThinkingSegmentNode(
				ast.Position{StartLine: lineNo, EndLine: startLine + closeIdx}, content, sig))
			i = closeIdx + 1
			textStart = startLine + i
			continue
		}

		if m := toolUseHeaderRe.FindStringSubmatch(line); m != nil {
			flushText(lineNo)
			name, id := m[1], m[2]
			k := i + 1
			for k < len(lines) && strings.TrimSpace(lines[k]) == "" {
				k++
			}
			if k >= len(lines) {
				p.doc.AddDiagnostic(ast.Diagnostic{
					Type: ast.DiagnosticToolUse, Severity: ast.SeverityWarning,
					Message:     "tool use requires a fenced code block with JSON input",
					MessageRole: msg.Role,
					Pos:         &ast.Position{StartLine: lineNo, EndLine: lineNo},
				})
				i = len(lines)
				break
			}
			if !fenceOpenRe.MatchString(lines[k]) {
				p.doc.AddDiagnostic(ast.Diagnostic{
					Type: ast.DiagnosticToolUse, Severity: ast.SeverityWarning,
					Message:     "tool use requires a fenced code block with JSON input",
					MessageRole: msg.Role,
					Pos:         &ast.Position{StartLine: lineNo, EndLine: lineNo},
				})
				i = len(lines)
				break
			}
			block, next, ok := tryParseFence(lines, k, func(idx int) int { return startLine + idx })
			if !ok {
				p.doc.AddDiagnostic(ast.Diagnostic{
					Type: ast.DiagnosticToolUse, Severity: ast.SeverityWarning,
					Message:     "unclosed fenced code block",
					MessageRole: msg.Role,
					Pos:         &ast.Position{StartLine: lineNo, EndLine: lineNo},
				})
				i = len(lines)
				break
			}
			lang := block.Language
			if lang == "" {
				lang = "json"
			}
			input, err := p.registry.Parse(lang, block.Content, nil)
			if err != nil {
				p.doc.AddDiagnostic(ast.Diagnostic{
					Type: ast.DiagnosticToolUse, Severity: ast.SeverityWarning,
					Message:     "failed to parse tool use input: " + err.Error(),
					Language:    lang,
					MessageRole: msg.Role,
					Pos:         &ast.Position{StartLine: block.StartLine, EndLine: block.EndLine},
				})
				i = next
				textStart = startLine + i
				continue
			}
			msg.Segments = append(msg.Segments, ast.ToolUseSegmentNode(
				ast.Position{StartLine: lineNo, EndLine: block.EndLine}, id, name, input))
			i = next
			textStart = startLine + i
			continue
		}

		textBuf = append(textBuf, line)
		i++
	}
	flushText(startLine + len(lines))
}

// scanYou implements §4.3's You branch: tool-result headers are
// recognized line by line; everything else accumulates into a text
// buffer that is inline-scanned (expressions, file refs) at each flush
// point, since expressions may span multiple lines.
func (p *parseState) scanYou(msg *ast.Message, lines []string, startLine int) {
	i := 0
	var textBuf []string
	textStart := startLine

	flushText := func() {
		if len(textBuf) == 0 {
			return
		}
		joined := joinLines(textBuf)
		msg.Segments = append(msg.Segments, scanInline(joined, textStart)...)
		textBuf = nil
	}

	for i < len(lines) {
		lineNo := startLine + i
		line := lines[i]

		if m := toolResultHeadRe.FindStringSubmatch(line); m != nil {
			flushText()
			id := m[1]
			isError := strings.TrimSpace(m[2]) != ""
			k := i + 1
			for k < len(lines) && strings.TrimSpace(lines[k]) == "" {
				k++
			}
			if k >= len(lines) {
				p.doc.AddDiagnostic(ast.Diagnostic{
					Type: ast.DiagnosticToolResult, Severity: ast.SeverityWarning,
					Message:     "tool result requires a fenced code block",
					MessageRole: msg.Role,
					Pos:         &ast.Position{StartLine: lineNo, EndLine: lineNo},
				})
				i = len(lines)
				break
			}
			if !fenceOpenRe.MatchString(lines[k]) {
				p.doc.AddDiagnostic(ast.Diagnostic{
					Type: ast.DiagnosticToolResult, Severity: ast.SeverityWarning,
					Message:     "tool result requires a fenced code block",
					MessageRole: msg.Role,
					Pos:         &ast.Position{StartLine: lineNo, EndLine: lineNo},
				})
				i = len(lines)
				break
			}
			block, next, ok := tryParseFence(lines, k, func(idx int) int { return startLine + idx })
			if !ok {
				p.doc.AddDiagnostic(ast.Diagnostic{
					Type: ast.DiagnosticToolResult, Severity: ast.SeverityWarning,
					Message:     "unclosed fenced code block",
					MessageRole: msg.Role,
					Pos:         &ast.Position{StartLine: lineNo, EndLine: lineNo},
				})
				i = len(lines)
				break
			}
			content := block.Content
			if block.Language != "" {
				v, err := p.registry.Parse(block.Language, block.Content, nil)
				if err == nil {
					if s, isContainer := serializeIfContainer(v); isContainer {
						content = s
					}
				}
			}
			msg.Segments = append(msg.Segments, ast.ToolResultSegmentNode(
				ast.Position{StartLine: lineNo, EndLine: block.EndLine}, id, content, isError, nil))
			i = next
			textStart = startLine + i
			continue
		}

		textBuf = append(textBuf, line)
		i++
	}
	flushText()
}
