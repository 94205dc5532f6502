package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/minios-linux/doctrans/slicer"
)

// ---------------------------------------------------------------------------
// split (dry run: show slicing without calling AI)
// ---------------------------------------------------------------------------

func newSplitCmd() *cobra.Command {
	var (
		kind       string
		lowerBound int
		marker     string
		tokenizer  string
		showUnits  bool
	)

	cmd := &cobra.Command{
		Use:   "split FILE",
		Short: "Show how a document is sliced, without calling AI",
		Long: `Slice a document and print its spans, units and token costs.

Nothing is sent to a provider; use this to tune --lower-bound or to check
which parts of a document will be translated.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			grammar, err := resolveKind(kind, args[0], false)
			if err != nil {
				logError("%v", err)
				os.Exit(1)
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				logError("%v", err)
				os.Exit(1)
			}

			cfg := slicer.DefaultConfig(grammar)
			if lowerBound > 0 {
				cfg.LowerBound = lowerBound
			}
			if marker != "" {
				cfg.Marker = marker
			}
			cost := costFunc(tokenizer)

			sl, err := slicer.Slice(slicer.Document{Text: string(data), Grammar: grammar}, cfg, cost)
			if err != nil {
				logError("%v", err)
				os.Exit(1)
			}
			printSlices(os.Stdout, args[0], sl, cfg, cost, showUnits)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Document kind: markdown, lean, text (default: from extension)")
	cmd.Flags().IntVar(&lowerBound, "lower-bound", 0, "Token size at which a unit is sealed (0 = kind default)")
	cmd.Flags().StringVar(&marker, "marker", "", "Placeholder for code blocks while slicing")
	cmd.Flags().StringVar(&tokenizer, "tokenizer", "", "Token counter: tiktoken encoding name or \"estimate\"")
	cmd.Flags().BoolVar(&showUnits, "units", false, "Print the text of every unit")

	return cmd
}

// printSlices writes the slicing report of one document.
func printSlices(w io.Writer, name string, sl *slicer.Sliced, cfg slicer.Config, cost slicer.CostFunc, showUnits bool) {
	fmt.Fprintf(w, "%s (%s, lower bound %d)\n", name, sl.Grammar, cfg.LowerBound)
	fmt.Fprintf(w, "  spans: %d  opaque blocks: %d  units: %d  requests: %d\n",
		len(sl.Spans), len(sl.Opaque), sl.Units(), len(sl.Filtered))

	total := 0
	for i, span := range sl.Tree {
		spanCost := 0
		for _, u := range span {
			spanCost += cost(u)
		}
		total += spanCost
		fmt.Fprintf(w, "  span %d: %d unit(s), %d tokens\n", i, len(span), spanCost)
		for k, u := range span {
			status := ""
			if strings.TrimSpace(u) == "" {
				status = " (whitespace, not sent)"
			}
			fmt.Fprintf(w, "    unit %d: %d tokens, %d lines%s\n", k, cost(u), strings.Count(u, "\n"), status)
			if showUnits && status == "" {
				for _, line := range strings.Split(strings.TrimRight(u, "\n"), "\n") {
					fmt.Fprintf(w, "      | %s\n", line)
				}
			}
		}
	}
	fmt.Fprintf(w, "  total: %d tokens\n", total)
}
