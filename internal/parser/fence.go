package parser

import "regexp"

var fenceOpenRe = regexp.MustCompile("^(`{3,})([\\w:._-]*)\\s*$")
var fenceCloseRe = regexp.MustCompile("^(`{3,})\\s*$")

// fencedBlock describes a parsed ```lang\n...\n``` block.
type fencedBlock struct {
	Language string
	Content  string
	// StartLine/EndLine are 1-based, inclusive, document-relative.
	StartLine int
	EndLine   int
}

// tryParseFence attempts to parse a fenced block starting at lines[i]
// (0-based index into lines, docLineOf maps index→1-based document line).
// Returns the block, the index one past its closing fence, and ok=true on
// success. On failure (no opener, or opener with no matching closer) ok is
// false and the caller decides how to report it.
func tryParseFence(lines []string, i int, docLineOf func(int) int) (fencedBlock, int, bool) {
	if i >= len(lines) {
		return fencedBlock{}, i, false
	}
	m := fenceOpenRe.FindStringSubmatch(lines[i])
	if m == nil {
		return fencedBlock{}, i, false
	}
	openTicks := m[1]
	lang := m[2]
	start := i
	j := i + 1
	var content []string
	for j < len(lines) {
		cm := fenceCloseRe.FindStringSubmatch(lines[j])
		if cm != nil && len(cm[1]) >= len(openTicks) {
			return fencedBlock{
				Language:  lang,
				Content:   joinLines(content),
				StartLine: docLineOf(start),
				EndLine:   docLineOf(j),
			}, j + 1, true
		}
		content = append(content, lines[j])
		j++
	}
	// Unclosed fence.
	return fencedBlock{}, len(lines), false
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
