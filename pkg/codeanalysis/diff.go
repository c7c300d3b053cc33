package codeanalysis

import (
	"github.com/pmezard/go-difflib/difflib"
)

// UnifiedDiff renders the line differences between two snippets.
func UnifiedDiff(fromName, from, toName, to string) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(from),
		B:        difflib.SplitLines(to),
		FromFile: fromName,
		ToFile:   toName,
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(diff)
}
