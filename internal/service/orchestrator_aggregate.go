package service

import (
	"fmt"
	"sort"
	"strings"
)

const (
	topExperts      = 3
	outputsPerTop   = 5
	combinedDivider = "\n---\n"
)

// rankExperts orders expert names by number of outputs, ties broken by
// the lowest slot index the expert occupies, and keeps the first n.
func rankExperts(perExpert map[string][]string, slotOf map[string]int, n int) []string {
	names := make([]string, 0, len(perExpert))
	for name := range perExpert {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := names[i], names[j]
		if len(perExpert[a]) != len(perExpert[b]) {
			return len(perExpert[a]) > len(perExpert[b])
		}
		return slotOf[a] < slotOf[b]
	})
	if len(names) > n {
		names = names[:n]
	}
	return names
}

// combineOutputs joins the last few outputs of each top expert.
func combineOutputs(perExpert map[string][]string, top []string) string {
	parts := make([]string, 0, len(top))
	for _, name := range top {
		outs := perExpert[name]
		if len(outs) > outputsPerTop {
			outs = outs[len(outs)-outputsPerTop:]
		}
		parts = append(parts, strings.Join(outs, " "))
	}
	return strings.TrimSpace(strings.Join(parts, combinedDivider))
}

// defaultDecision lists the most recent non-empty output of each top expert.
func defaultDecision(perExpert map[string][]string, top []string) string {
	var b strings.Builder
	b.WriteString("Top suggestions:")
	if len(top) == 0 {
		b.WriteString("\n(no suggestion)")
		return b.String()
	}
	for i, name := range top {
		sample := "(no suggestion)"
		outs := perExpert[name]
		for j := len(outs) - 1; j >= 0; j-- {
			if outs[j] != "" {
				sample = outs[j]
				break
			}
		}
		fmt.Fprintf(&b, "\n%d. From %s: %s", i+1, name, sample)
	}
	return b.String()
}
