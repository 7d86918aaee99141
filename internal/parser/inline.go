package parser

import (
	"regexp"
	"strings"

	"github.com/flemma-dev/flemma-core/internal/ast"
)

// expressionRe matches {{...}} non-greedy, across newlines.
var expressionRe = regexp.MustCompile(`(?s)\{\{(.*?)\}\}`)

// fileTokenRe matches a whole non-whitespace token starting with @./ or
// @../; punctuation trimming and ;type= splitting happen afterward so the
// trailing-punctuation rule can't be defeated by regex greediness.
var fileTokenRe = regexp.MustCompile(`@(\.\.?/\S+)`)

var trailingPunctRe = regexp.MustCompile(`[[:punct:]]+$`)

const typeMarker = ";type="

// scanInline produces text/expression segments from a raw text buffer,
// starting at the given 1-based document line, per §4.3.2. File
// references are lowered into include(...) expression segments (plus a
// trailing text segment for stripped punctuation) at this stage, per
// §4.3 "file references ... are lowered ... unifying runtime handling".
func scanInline(buf string, startLine int) []ast.Segment {
	var segs []ast.Segment
	pos := 0
	line := startLine

	emitText := func(s string, from int) {
		if s == "" {
			return
		}
		l0 := line + strings.Count(buf[from:from+len(s)], "\n")
		segs = append(segs, ast.TextSegment(ast.Position{StartLine: line, EndLine: l0}, s))
	}

	advanceLine := func(consumed string) {
		line += strings.Count(consumed, "\n")
	}

	for pos < len(buf) {
		exprLoc := expressionRe.FindStringIndex(buf[pos:])
		fileLoc := fileTokenRe.FindStringIndex(buf[pos:])

		if exprLoc == nil && fileLoc == nil {
			emitText(buf[pos:], pos)
			break
		}

		useExpr := exprLoc != nil && (fileLoc == nil || exprLoc[0] <= fileLoc[0])

		if useExpr {
			absStart := pos + exprLoc[0]
			absEnd := pos + exprLoc[1]
			emitText(buf[pos:absStart], pos)
			advanceLine(buf[pos:absStart])
			code := expressionRe.FindStringSubmatch(buf[pos+exprLoc[0] : pos+exprLoc[1]])[1]
			lStart := line
			exprText := buf[absStart:absEnd]
			lEnd := lStart + strings.Count(exprText, "\n")
			segs = append(segs, ast.ExpressionSegment(ast.Position{StartLine: lStart, EndLine: lEnd}, code))
			advanceLine(exprText)
			pos = absEnd
			continue
		}

		absStart := pos + fileLoc[0]
		absEnd := pos + fileLoc[1]
		emitText(buf[pos:absStart], pos)
		advanceLine(buf[pos:absStart])

		rawToken := fileTokenRe.FindStringSubmatch(buf[absStart:absEnd])[1] // path part after '@'
		path, mime, trailing := splitFileToken(rawToken)
		path = strings.TrimPrefix(path, "./")

		code := "include('" + escapeSingleQuotes(path) + "', binary=True"
		if mime != "" {
			code += ", mime='" + escapeSingleQuotes(mime) + "'"
		}
		code += ")"
		segs = append(segs, ast.ExpressionSegment(ast.Position{StartLine: line, EndLine: line}, code))

		if trailing != "" {
			segs = append(segs, ast.TextSegment(ast.Position{StartLine: line, EndLine: line}, trailing))
		}

		advanceLine(buf[absStart:absEnd])
		pos = absEnd
	}

	return segs
}

// splitFileToken separates a raw "./path[;type=mime]trailing-punct" token
// (everything after '@') into its path, optional mime override, and
// stripped trailing punctuation.
func splitFileToken(raw string) (path, mime, trailing string) {
	if idx := strings.Index(raw, typeMarker); idx >= 0 {
		path = raw[:idx]
		rest := raw[idx+len(typeMarker):]
		mime, trailing = splitTrailingPunct(rest)
		return path, mime, trailing
	}
	path, trailing = splitTrailingPunct(raw)
	return path, "", trailing
}

func splitTrailingPunct(s string) (core, punct string) {
	loc := trailingPunctRe.FindStringIndex(s)
	if loc == nil {
		return s, ""
	}
	return s[:loc[0]], s[loc[0]:]
}

func escapeSingleQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
