package slicer

import "strings"

// Split greedily groups the lines of text into units. A unit is sealed as soon
// as cost reports that it reached lowerBound, so every unit but the last
// costs at least lowerBound, and a single line is never cut even if it alone
// exceeds the bound. Line breaks are kept, so joining the units with ""
// yields text again.
func Split(text string, lowerBound int, cost CostFunc) []string {
	units := []string{}
	var cur strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		cur.WriteString(line)
		if cost(cur.String()) >= lowerBound {
			units = append(units, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		units = append(units, cur.String())
	}
	return units
}

// BuildTree splits every span independently.
func BuildTree(spans []string, lowerBound int, cost CostFunc) [][]string {
	tree := make([][]string, len(spans))
	for i, span := range spans {
		tree[i] = Split(span, lowerBound, cost)
	}
	return tree
}
