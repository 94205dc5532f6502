package slicer

import "strings"

const (
	leanCommentOpen  = "/- "
	leanCommentClose = "\n-/"
)

// Assemble interleaves the recovered spans with the opaque blocks in document
// order. The units of one span are joined with a single newline.
//
// Markdown and plain text produce span[0], block[0], span[1], ... with every
// block surrounded by blank lines. Lean produces code[0], comment[0],
// code[1], ... where each comment is rebuilt from the translated span; the
// code block after the last span is still followed by an empty comment.
func Assemble(spans [][]Result, opaque []string, g Grammar) string {
	var buf strings.Builder
	if g == Lean {
		for i, code := range opaque {
			if code != "" {
				buf.WriteString("\n\n" + code + "\n\n")
			} else {
				buf.WriteString("\n\n")
			}
			buf.WriteString(leanCommentOpen)
			if i < len(spans) {
				buf.WriteString(joinResults(spans[i]))
			}
			buf.WriteString(leanCommentClose)
		}
		return buf.String()
	}

	for i, span := range spans {
		buf.WriteString(joinResults(span))
		if i < len(opaque) {
			buf.WriteString("\n\n" + opaque[i] + "\n\n")
		}
	}
	return buf.String()
}

func joinResults(rs []Result) string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		if r != nil {
			parts[i] = r.FinalText()
		}
	}
	return strings.Join(parts, "\n")
}
