package schema

import (
	"slices"
	"strings"
)

// BranchCandidates is the set of branch names known to the server plus the
// designated main branch.
type BranchCandidates struct {
	Names []string `json:"names"`
	Main  string   `json:"main"`
}

// NewBranchCandidates builds a candidate set, defaulting the main branch name.
func NewBranchCandidates(names []string, main string) BranchCandidates {
	main = strings.TrimSpace(main)
	if main == "" {
		main = DefaultMainBranch
	}
	return BranchCandidates{Names: names, Main: main}
}

// Sorted returns the distinct candidate names in lexical order.
func (c BranchCandidates) Sorted() []string {
	out := make([]string, 0, len(c.Names))
	for _, n := range c.Names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Contains reports whether name is one of the candidates, ignoring the
// surrounding whitespace of configured names.
func (c BranchCandidates) Contains(name string) bool {
	if name == "" {
		return false
	}
	_, found := slices.BinarySearch(c.Sorted(), name)
	return found
}

// Key identifies the candidate set independently of input order.
func (c BranchCandidates) Key() string {
	return c.Main + "\x00" + strings.Join(c.Sorted(), "\x00")
}

// BranchResult is the outcome of electing a server branch for a module.
type BranchResult struct {
	Module  string `json:"module"`
	Branch  string `json:"branch,omitempty"`
	Matched bool   `json:"matched"`
}
