package slicer

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func upper(units []string) []Result {
	out := make([]Result, len(units))
	for i, u := range units {
		out[i] = Text(strings.ToUpper(u))
	}
	return out
}

func TestAssemble_Markdown(t *testing.T) {
	spans := [][]Result{{Text("A\n")}, {Text("\n\nB\n")}}
	got := Assemble(spans, []string{"```code\n```"}, Markdown)
	want := "A\n\n\n```code\n```\n\n\n\nB\n"
	if got != want {
		t.Errorf("Assemble = %q, want %q", got, want)
	}
}

func TestAssemble_JoinsUnitsWithNewline(t *testing.T) {
	spans := [][]Result{{Text("one"), Text("two"), nil}}
	if got := Assemble(spans, nil, Plain); got != "one\ntwo\n" {
		t.Errorf("Assemble = %q", got)
	}
}

func TestAssemble_LeanTrailingEmptyComment(t *testing.T) {
	spans := [][]Result{{Text("Intro text")}, {Text("trailing")}}
	got := Assemble(spans, []string{"", "def x := 1", ""}, Lean)
	want := "\n\n/- Intro text\n-/\n\ndef x := 1\n\n/- trailing\n-/\n\n/- \n-/"
	if got != want {
		t.Errorf("Assemble = %q, want %q", got, want)
	}
}

// ---------------------------------------------------------------------------
// Slice / Reassemble
// ---------------------------------------------------------------------------

func TestSliceReassemble_Uppercase(t *testing.T) {
	doc := Document{Text: "a\n\n```code\n```\n\nb\n", Grammar: Markdown}
	sl, err := Slice(doc, DefaultConfig(Markdown), byteCost)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if diff := cmp.Diff([]string{"a\n", "\n\nb\n"}, sl.Filtered); diff != "" {
		t.Fatalf("Filtered mismatch (-want +got):\n%s", diff)
	}
	out, err := sl.Reassemble(upper(sl.Filtered))
	if err != nil {
		t.Fatalf("Reassemble: %v", err)
	}
	if want := "A\n\n\n```code\n```\n\n\n\nB\n"; out != want {
		t.Errorf("Reassemble = %q, want %q", out, want)
	}
	// The fenced block is never handed to the backend and survives verbatim.
	if !strings.Contains(out, "```code\n```") {
		t.Error("code block was altered")
	}
}

func TestSliceReassemble_IdentityUpToWhitespace(t *testing.T) {
	docs := []string{
		"",
		"plain paragraph\n",
		"# Title\n\nIntro line one.\nIntro line two.\n\n```sh\nls -la\n```\n\nMiddle.\n\n\n\n```\nraw\n```\nEnd.\n",
		strings.Repeat("word word word\n\n", 30) + "```py\nprint(1)\n```\n" + strings.Repeat("tail\n", 10),
	}
	for _, text := range docs {
		for _, bound := range []int{1, 5, 300} {
			sl, err := Slice(Document{Text: text, Grammar: Markdown}, Config{LowerBound: bound}, wordCost)
			if err != nil {
				t.Fatalf("Slice: %v", err)
			}
			out, err := sl.Reassemble(Texts(sl.Filtered))
			if err != nil {
				t.Fatalf("Reassemble: %v", err)
			}
			if diff := cmp.Diff(strings.Fields(text), strings.Fields(out)); diff != "" {
				t.Errorf("bound %d: words differ (-in +out):\n%s", bound, diff)
			}
		}
	}
}

func TestSliceReassemble_Lean(t *testing.T) {
	sl, err := Slice(Document{Text: leanSample, Grammar: Lean}, DefaultConfig(Lean), byteCost)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	out, err := sl.Reassemble(Texts(sl.Filtered))
	if err != nil {
		t.Fatalf("Reassemble: %v", err)
	}
	want := "\n\ntheorem foo : True := by\n  trivial\n\n" +
		"/- The main lemma.\nSecond line.\n-/" +
		"\n\nlemma bar : 1 = 1 := rfl\n\n/- \n-/"
	if out != want {
		t.Errorf("Reassemble = %q, want %q", out, want)
	}
}

func TestSliceReassemble_OrderIndependent(t *testing.T) {
	text := strings.Repeat("first line\nsecond line\n\n```\ncode\n```\n", 6)
	sl, err := Slice(Document{Text: text, Grammar: Markdown}, Config{LowerBound: 2}, wordCost)
	if err != nil {
		t.Fatal(err)
	}
	forward, err := sl.Reassemble(upper(sl.Filtered))
	if err != nil {
		t.Fatal(err)
	}

	// Process last to first, keyed by index, then hand back in index order.
	byIndex := make(map[int]Result, len(sl.Filtered))
	for i := len(sl.Filtered) - 1; i >= 0; i-- {
		byIndex[i] = Text(strings.ToUpper(sl.Filtered[i]))
	}
	ordered := make([]Result, len(sl.Filtered))
	for i := range ordered {
		ordered[i] = byIndex[i]
	}
	reversed, err := sl.Reassemble(ordered)
	if err != nil {
		t.Fatal(err)
	}
	if forward != reversed {
		t.Errorf("out-of-order processing changed the output:\n%q\n%q", forward, reversed)
	}
}

func TestSliceReassemble_MissingResults(t *testing.T) {
	sl, err := Slice(Document{Text: "a\nb\nc\n", Grammar: Plain}, Config{LowerBound: 1}, byteCost)
	if err != nil {
		t.Fatal(err)
	}
	if sl.Units() != 3 {
		t.Fatalf("Units() = %d, want 3", sl.Units())
	}
	_, err = sl.Reassemble(Texts(sl.Filtered[:2]))
	if !errors.Is(err, ErrResultCount) {
		t.Errorf("err = %v, want ErrResultCount", err)
	}
}

func TestSlice_WhitespaceUnitsNeverReachBackend(t *testing.T) {
	text := "x\n\n```\nc\n```\n\n\n\n```\nd\n```\ny\n"
	sl, err := Slice(Document{Text: text, Grammar: Markdown}, Config{LowerBound: 1}, byteCost)
	if err != nil {
		t.Fatal(err)
	}
	for _, u := range sl.Filtered {
		if strings.TrimSpace(u) == "" {
			t.Errorf("whitespace unit %q in work list", u)
		}
	}
	if len(sl.Filtered) >= sl.Units() {
		t.Errorf("expected some units to be filtered: %d of %d", len(sl.Filtered), sl.Units())
	}
}
