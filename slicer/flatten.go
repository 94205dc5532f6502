package slicer

import (
	"fmt"
	"strings"
)

// Flattened is the dense work list derived from a slice tree.
type Flattened struct {
	// Lengths holds the unit count of each span (may be 0).
	Lengths []int
	// IsEmpty flags, in flattened order, the units that are whitespace only.
	IsEmpty []bool
	// Filtered is the flattened units without the whitespace-only ones.
	Filtered []string
}

// Flatten concatenates the units of all spans and drops whitespace-only
// units from the work list. It always holds that len(IsEmpty) equals the sum
// of Lengths and that the number of false flags equals len(Filtered).
func Flatten(tree [][]string) Flattened {
	f := Flattened{
		Lengths:  make([]int, len(tree)),
		IsEmpty:  []bool{},
		Filtered: []string{},
	}
	for i, units := range tree {
		f.Lengths[i] = len(units)
		for _, u := range units {
			empty := strings.TrimSpace(u) == ""
			f.IsEmpty = append(f.IsEmpty, empty)
			if !empty {
				f.Filtered = append(f.Filtered, u)
			}
		}
	}
	return f
}

// Recover is the inverse of Flatten. Walking isEmpty in order, each empty
// position receives empty and each other position takes the next result, so
// results must be ordered like Flattened.Filtered. The flat sequence is then
// regrouped by lengths.
func Recover(lengths []int, isEmpty []bool, results []Result, empty Result) ([][]Result, error) {
	return RecoverAny(lengths, isEmpty, results, empty)
}

// RecoverAny is Recover for any element type.
func RecoverAny[T any](lengths []int, isEmpty []bool, results []T, empty T) ([][]T, error) {
	total := 0
	for i, n := range lengths {
		if n < 0 {
			return nil, fmt.Errorf("recover: %w: span %d has negative length %d", ErrShapeMismatch, i, n)
		}
		total += n
	}
	if total != len(isEmpty) {
		return nil, fmt.Errorf("recover: %w: lengths sum to %d, %d flags", ErrShapeMismatch, total, len(isEmpty))
	}
	nEmpty := 0
	for _, e := range isEmpty {
		if e {
			nEmpty++
		}
	}
	if nEmpty+len(results) != total {
		return nil, fmt.Errorf("recover: %w: got %d results, want %d", ErrResultCount, len(results), total-nEmpty)
	}

	flat := make([]T, len(isEmpty))
	next := 0
	for k, e := range isEmpty {
		if e {
			flat[k] = empty
			continue
		}
		flat[k] = results[next]
		next++
	}

	nested := make([][]T, len(lengths))
	pos := 0
	for i, n := range lengths {
		nested[i] = flat[pos : pos+n : pos+n]
		pos += n
	}
	return nested, nil
}
