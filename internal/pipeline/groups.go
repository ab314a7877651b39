package pipeline

import (
	"regexp"
	"strings"
)

// Group is a maximal run of consecutive stages between in-memory sort
// boundaries. Only Stages[0] may carry an in-memory sort. First is the
// declared position of Stages[0] in the job.
type Group struct {
	First  int
	Stages []Stage
}

// Sort returns the in-memory sort directive that opens the group, if any.
func (g Group) Sort() (Sort, bool) {
	if len(g.Stages) == 0 {
		return Sort{}, false
	}
	s := g.Stages[0].Sort()
	return s, s.InMemory()
}

// BuildGroups partitions stages into sort-delimited groups and extracts the
// single store-level sort expression, if any.
//
// A stage with an in-memory sort closes the current group and opens a new one.
// A store-level sort must be the first sort directive of the pipeline: one
// declared after any other sort (in-memory or store-level) yields a
// *SortError. Empty groups are never returned, and stage order is preserved.
func BuildGroups(stages []Stage) ([]Group, string, error) {
	var (
		groups    []Group
		cur       = Group{First: 0}
		foundSort bool
		storeSort string
	)

	flush := func() {
		if len(cur.Stages) > 0 {
			groups = append(groups, cur)
		}
	}

	for i, st := range stages {
		s := st.Sort()
		switch {
		case s.InMemory() && s.AtStore():
			return nil, "", &SortError{Index: i, Stage: st.Name(), Reason: "declares both an in-memory and a store-level sort"}

		case s.InMemory():
			foundSort = true
			flush()
			cur = Group{First: i, Stages: []Stage{st}}

		case s.AtStore():
			if foundSort {
				return nil, "", &SortError{Index: i, Stage: st.Name(), Reason: "store-level sort must be the first sort directive"}
			}
			foundSort = true
			storeSort = normalizeOrderBy(s.Store)
			if len(cur.Stages) == 0 {
				cur.First = i
			}
			cur.Stages = append(cur.Stages, st)

		default:
			if len(cur.Stages) == 0 {
				cur.First = i
			}
			cur.Stages = append(cur.Stages, st)
		}
	}
	flush()

	return groups, storeSort, nil
}

// normalizeOrderBy strips a leading ORDER BY keyword so both "event_time"
// and "ORDER BY event_time" are accepted.
func normalizeOrderBy(expr string) string {
	return strings.TrimSpace(orderByPrefix.ReplaceAllString(expr, ""))
}

var orderByPrefix = regexp.MustCompile(`(?i)^\s*order\s+by\s+`)
