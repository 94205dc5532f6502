// Package slicer implements the slice/recover pipeline that lets a document
// larger than a model's context be translated piece by piece.
//
// A document is cut into opaque blocks (fenced code in Markdown, code in Lean)
// and translatable spans. Each span is split into token-bounded units, the
// units are flattened into one work list with whitespace-only units removed,
// and after an external service has produced one result per work item the
// inverse transform restores the nested shape and the document is reassembled:
//
//	sl, err := slicer.Slice(doc, cfg, cost)
//	results := translateAll(sl.Filtered)     // one Result per filtered unit
//	out, err := sl.Reassemble(results)
//
// Everything in this package is pure: no I/O, no goroutines, no globals.
package slicer

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	// ErrShapeMismatch is returned by Recover when the per-span lengths do
	// not describe the empty-flag sequence.
	ErrShapeMismatch = errors.New("slice lengths do not match empty flags")

	// ErrResultCount is returned by Recover when the number of results does
	// not equal the number of non-empty units. It signals an incomplete or
	// corrupted processing run.
	ErrResultCount = errors.New("result count does not match non-empty units")

	// ErrMarkerCollision is returned by Extract when the placeholder marker
	// already occurs in the document.
	ErrMarkerCollision = errors.New("split marker occurs in document text")
)

// ---------------------------------------------------------------------------
// Grammar
// ---------------------------------------------------------------------------

// Grammar selects how a document is cut into opaque blocks and spans.
type Grammar int

const (
	// Markdown treats fenced code blocks as opaque.
	Markdown Grammar = iota
	// Lean translates comment regions and keeps code opaque.
	Lean
	// Plain translates the whole text as a single span.
	Plain
)

// String returns the grammar name as used on the command line.
func (g Grammar) String() string {
	switch g {
	case Markdown:
		return "markdown"
	case Lean:
		return "lean"
	case Plain:
		return "text"
	default:
		return fmt.Sprintf("grammar(%d)", int(g))
	}
}

// ParseGrammar parses a grammar name ("markdown", "md", "lean", "text", "plain").
func ParseGrammar(s string) (Grammar, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md":
		return Markdown, nil
	case "lean":
		return Lean, nil
	case "text", "plain", "txt":
		return Plain, nil
	default:
		return Plain, fmt.Errorf("unknown document kind %q (valid: markdown, lean, text)", s)
	}
}

// GrammarForPath guesses the grammar from a file extension.
func GrammarForPath(path string) Grammar {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".mdx":
		return Markdown
	case ".lean":
		return Lean
	default:
		return Plain
	}
}

// DefaultExt returns the file extension translated by default for g.
func (g Grammar) DefaultExt() string {
	switch g {
	case Markdown:
		return ".md"
	case Lean:
		return ".lean"
	default:
		return ".txt"
	}
}

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// DefaultMarker is the placeholder substituted for opaque blocks during
// extraction.
const DefaultMarker = "---SPLITLINE---"

// Config holds the tunables of one slicing call.
type Config struct {
	// Marker is the placeholder token used internally by Extract.
	Marker string
	// LowerBound is the token cost at which a unit is sealed.
	LowerBound int
}

// DefaultConfig returns the conventional settings for g: prose units of about
// 300 tokens, Lean comment units of about 800.
func DefaultConfig(g Grammar) Config {
	cfg := Config{Marker: DefaultMarker, LowerBound: 300}
	if g == Lean {
		cfg.LowerBound = 800
	}
	return cfg
}

func (c Config) marker() string {
	if c.Marker == "" {
		return DefaultMarker
	}
	return c.Marker
}

// ---------------------------------------------------------------------------
// Documents and results
// ---------------------------------------------------------------------------

// Document is raw text plus the grammar used to cut it.
type Document struct {
	Text    string
	Grammar Grammar
}

// CostFunc maps text to a token cost. It is expected to be non-decreasing as
// lines are appended.
type CostFunc func(string) int

// Result is one processed unit as returned by a translation backend.
type Result interface {
	FinalText() string
}

// Text is a Result backed by a plain string.
type Text string

// FinalText returns the string itself.
func (t Text) FinalText() string { return string(t) }

// Texts wraps each string as a Result.
func Texts(ss []string) []Result {
	out := make([]Result, len(ss))
	for i, s := range ss {
		out[i] = Text(s)
	}
	return out
}

// ---------------------------------------------------------------------------
// Whole-document pipeline
// ---------------------------------------------------------------------------

// Sliced is a document cut into work units, together with the bookkeeping
// needed to put results back in place.
type Sliced struct {
	Grammar Grammar
	// Opaque are the blocks that bypass translation, in document order.
	Opaque []string
	// Spans are the translatable regions, in document order.
	Spans []string
	// Tree holds the units of each span.
	Tree [][]string

	Flattened
}

// Slice runs extraction, per-span splitting and flattening on doc.
func Slice(doc Document, cfg Config, cost CostFunc) (*Sliced, error) {
	blocks, err := Extract(doc, cfg)
	if err != nil {
		return nil, err
	}
	tree := BuildTree(blocks.Spans, cfg.LowerBound, cost)
	return &Sliced{
		Grammar:   doc.Grammar,
		Opaque:    blocks.Opaque,
		Spans:     blocks.Spans,
		Tree:      tree,
		Flattened: Flatten(tree),
	}, nil
}

// Units returns the total number of units, empty ones included.
func (s *Sliced) Units() int {
	return len(s.IsEmpty)
}

// Reassemble restores the span structure from results (one per filtered
// unit, in order) and produces the final document text.
func (s *Sliced) Reassemble(results []Result) (string, error) {
	spans, err := Recover(s.Lengths, s.IsEmpty, results, Text(""))
	if err != nil {
		return "", err
	}
	return Assemble(spans, s.Opaque, s.Grammar), nil
}
