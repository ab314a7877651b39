package pipeline

// ValidateSchema checks that every stage's declared inputs are produced by
// the base columns or by an earlier stage. It scans the whole list, adding
// each stage's outputs to the available set whether or not the stage itself
// passed, and returns a *SchemaError listing every missing input, or nil.
//
// Only declared intent is checked: nothing stops a stage from reading a
// column it did not declare.
func ValidateSchema(base []string, stages []Stage) error {
	avail := make(map[string]struct{}, len(base)+len(stages))
	for _, c := range base {
		avail[c] = struct{}{}
	}

	var missing []MissingInput
	for i, st := range stages {
		for _, in := range st.Inputs() {
			if _, ok := avail[in]; !ok {
				missing = append(missing, MissingInput{Index: i, Stage: st.Name(), Column: in})
			}
		}
		for _, out := range st.Outputs() {
			avail[out] = struct{}{}
		}
	}

	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}

// Available returns the set of columns present after every stage has run,
// assuming all of them keep the record.
func Available(base []string, stages []Stage) map[string]struct{} {
	avail := make(map[string]struct{}, len(base)+len(stages))
	for _, c := range base {
		avail[c] = struct{}{}
	}
	for _, st := range stages {
		for _, out := range st.Outputs() {
			avail[out] = struct{}{}
		}
	}
	return avail
}
