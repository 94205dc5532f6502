package slicer

import (
	"fmt"
	"regexp"
	"strings"
)

// Blocks is a document separated into opaque blocks and translatable spans.
type Blocks struct {
	Opaque []string
	Spans  []string
}

// fencedBlock matches a fenced code block that starts at the beginning of a
// line. The newline ending the previous line is part of the match so that it
// does not leak into the preceding span.
var fencedBlock = regexp.MustCompile("(?s)(?:^|\n)(```.*?\n```)")

// leanComment matches a Lean block comment. Doc comments (/-- -/) match as
// well; module docs (/-! -/) keep the "!" in the captured body.
var leanComment = regexp.MustCompile(`(?s)/-+ *(.*?) *-+/`)

// leanInlineSorry carries no information and is dropped before extraction.
const leanInlineSorry = "/- inline sorry -/"

// Extract cuts doc into opaque blocks and spans according to its grammar.
//
// For Markdown the spans surround the fenced blocks, so there is always one
// more span than blocks. For Lean the comment bodies are the spans and the
// code between them is opaque, so there is one more opaque block than spans.
// Delimiters are not validated: an unclosed fence never matches and stays
// inside a span.
func Extract(doc Document, cfg Config) (Blocks, error) {
	marker := cfg.marker()
	switch doc.Grammar {
	case Markdown:
		return extractMarkdown(doc.Text, marker)
	case Lean:
		return extractLean(doc.Text, marker)
	case Plain:
		return Blocks{Opaque: []string{}, Spans: []string{doc.Text}}, nil
	default:
		return Blocks{}, fmt.Errorf("extract: unsupported grammar %v", doc.Grammar)
	}
}

func extractMarkdown(text, marker string) (Blocks, error) {
	if strings.Contains(text, marker) {
		return Blocks{}, fmt.Errorf("extract markdown: %w: %q", ErrMarkerCollision, marker)
	}
	opaque := []string{}
	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		opaque = append(opaque, m[1])
	}
	replaced := fencedBlock.ReplaceAllLiteralString(text, marker)
	return Blocks{
		Opaque: opaque,
		Spans:  strings.Split(replaced, marker),
	}, nil
}

func extractLean(text, marker string) (Blocks, error) {
	text = strings.ReplaceAll(text, leanInlineSorry, "")
	if strings.Contains(text, marker) {
		return Blocks{}, fmt.Errorf("extract lean: %w: %q", ErrMarkerCollision, marker)
	}
	spans := []string{}
	for _, m := range leanComment.FindAllStringSubmatch(text, -1) {
		spans = append(spans, strings.Trim(m[1], "\n"))
	}
	replaced := leanComment.ReplaceAllLiteralString(text, marker)
	codes := strings.Split(replaced, marker)
	for i, code := range codes {
		codes[i] = strings.TrimSpace(code)
	}
	return Blocks{Opaque: codes, Spans: spans}, nil
}
