package config

import (
	"strings"
	"testing"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func validFile() File {
	return File{
		Job:     "general-log",
		Source:  Endpoint{Kind: "mysql", DSN: "u@tcp(db)/", Dataset: "general_log"},
		Target:  Endpoint{Kind: "mysql", DSN: "u@tcp(db)/", Dataset: "processed_log"},
		Stages:  []Unit{{Kind: "user_host", Options: Options{}}},
		Outputs: []Output{{Name: "user", Type: "MEDIUMTEXT"}},
		Runtime: Runtime{Workers: 1},
		Metrics: Metrics{Backend: "none"},
		Log:     Log{Level: "info", Format: "console"},
	}
}

/*
TestValidate_ValidMinimal verifies that a well-formed job file produces no
issues (errors or warnings).
*/
func TestValidate_ValidMinimal(t *testing.T) {
	issues := Validate(validFile(), WithKnownKinds([]string{"user_host"}, nil, []string{"mysql"}))
	if len(issues) != 0 {
		t.Fatalf("expected no issues; got %+v", issues)
	}
	if HasErrors(issues) {
		t.Fatalf("HasErrors = true on no issues")
	}
}

/*
TestValidate_MissingJob verifies that an empty job produces a SeverityError
with path "job".
*/
func TestValidate_MissingJob(t *testing.T) {
	f := validFile()
	f.Job = "  "
	issues := Validate(f)
	if !hasIssue(t, issues, SeverityError, "job", "job must not be empty") {
		t.Fatalf("expected SeverityError for job; got issues: %+v", issues)
	}
	if !HasErrors(issues) {
		t.Fatalf("HasErrors = false, want true")
	}
}

/*
TestValidate_Endpoints covers missing kinds and datasets, unknown store
kinds, and a target that aliases the source dataset.
*/
func TestValidate_Endpoints(t *testing.T) {
	f := validFile()
	f.Source.Kind = ""
	f.Source.Dataset = ""
	f.Target.Kind = "oracle"
	issues := Validate(f, WithKnownKinds(nil, nil, []string{"mysql", "sqlite"}))

	if !hasIssue(t, issues, SeverityError, "source.kind", "must not be empty") {
		t.Fatalf("expected source.kind error; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "source.dataset", "must not be empty") {
		t.Fatalf("expected source.dataset error; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "target.kind", `unsupported store kind "oracle"`) {
		t.Fatalf("expected target.kind error; got %+v", issues)
	}

	same := validFile()
	same.Target.Dataset = same.Source.Dataset
	if !hasIssue(t, Validate(same), SeverityError, "target.dataset", "must differ") {
		t.Fatalf("expected aliasing error")
	}

	noDSN := validFile()
	noDSN.Target.DSN = ""
	if !hasIssue(t, Validate(noDSN), SeverityWarning, "target.dsn", "dsn is empty") {
		t.Fatalf("expected dsn warning")
	}

	dotted := validFile()
	dotted.Target.Dataset = "logs.processed"
	if !hasIssue(t, Validate(dotted), SeverityError, "target.dataset", "must not contain a dot") {
		t.Fatalf("expected dotted dataset error")
	}
}

/*
TestValidate_Selectors checks the shapes a selector may not take.
*/
func TestValidate_Selectors(t *testing.T) {
	f := validFile()
	f.Selectors = []Selector{
		{Clause: "command_type = 'Query'"},
		{Clause: "   "},
		{Clause: "x = 1", Column: "x"},
		{Column: "server_id"},
		{Column: "server_id", Values: []string{"1"}, Value: "2"},
		{Column: "server_id", Values: []string{"1"}},
	}
	issues := Validate(f)

	if !hasIssue(t, issues, SeverityWarning, "selectors[1]", "ignored") {
		t.Fatalf("expected empty selector warning; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "selectors[2]", "both clause and column") {
		t.Fatalf("expected clause+column error; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "selectors[3].values", "needs value or values") {
		t.Fatalf("expected missing values error; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "selectors[4]", "both value and values") {
		t.Fatalf("expected value+values error; got %+v", issues)
	}
	for _, iss := range issues {
		if iss.Path == "selectors[0]" || iss.Path == "selectors[5]" {
			t.Fatalf("unexpected issue for a valid selector: %+v", iss)
		}
	}
}

/*
TestValidate_UnitKinds verifies empty and unregistered stage and prefilter
kinds are errors only when the known lists are supplied.
*/
func TestValidate_UnitKinds(t *testing.T) {
	f := validFile()
	f.Prefilters = []Unit{{Kind: "bogus"}}
	f.Stages = []Unit{{Kind: "user_host"}, {Kind: ""}}

	issues := Validate(f)
	if !hasIssue(t, issues, SeverityError, "stages[1].kind", "must not be empty") {
		t.Fatalf("expected empty kind error; got %+v", issues)
	}
	if hasIssue(t, issues, SeverityError, "prefilters[0].kind", "unknown kind") {
		t.Fatalf("unknown kind reported without a known list")
	}

	issues = Validate(f, WithKnownKinds([]string{"user_host"}, []string{"unwanted_terms"}, nil))
	if !hasIssue(t, issues, SeverityError, "prefilters[0].kind", `unknown kind "bogus"`) {
		t.Fatalf("expected unknown prefilter kind; got %+v", issues)
	}
}

/*
TestValidate_Outputs covers an empty output list, duplicates, and missing
names or types.
*/
func TestValidate_Outputs(t *testing.T) {
	f := validFile()
	f.Outputs = nil
	if !hasIssue(t, Validate(f), SeverityError, "outputs", "at least one output") {
		t.Fatalf("expected empty outputs error")
	}

	f.Outputs = []Output{
		{Name: "user", Type: "TEXT"},
		{Name: "user", Type: "TEXT"},
		{Name: "", Type: "TEXT"},
		{Name: "query"},
	}
	issues := Validate(f)
	if !hasIssue(t, issues, SeverityError, "outputs[1].name", `duplicate output "user"`) {
		t.Fatalf("expected duplicate error; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "outputs[2].name", "must not be empty") {
		t.Fatalf("expected empty name error; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "outputs[3].type", "empty type") {
		t.Fatalf("expected empty type error; got %+v", issues)
	}
}

/*
TestValidate_RuntimeMetricsLog covers workers bounds, metrics backends and
log settings.
*/
func TestValidate_RuntimeMetricsLog(t *testing.T) {
	f := validFile()
	f.Runtime.Workers = 0
	f.Metrics = Metrics{Backend: "prometheus"}
	f.Log = Log{Level: "verbose", Format: "xml"}
	issues := Validate(f)

	if !hasIssue(t, issues, SeverityError, "runtime.workers", "at least 1") {
		t.Fatalf("expected workers error; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "metrics.pushgateway_url", "requires pushgateway_url") {
		t.Fatalf("expected pushgateway error; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "log.level", `unsupported level "verbose"`) {
		t.Fatalf("expected log.level error; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "log.format", `unsupported format "xml"`) {
		t.Fatalf("expected log.format error; got %+v", issues)
	}

	f = validFile()
	f.Runtime.Workers = 100
	f.Metrics = Metrics{Backend: "statsd"}
	issues = Validate(f)
	if !hasIssue(t, issues, SeverityWarning, "runtime.workers", "workers=100") {
		t.Fatalf("expected workers warning; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "metrics.backend", `unsupported backend "statsd"`) {
		t.Fatalf("expected backend error; got %+v", issues)
	}
}

func TestIssue_Error(t *testing.T) {
	iss := Issue{Severity: SeverityError, Path: "job", Message: "job must not be empty"}
	if got, want := iss.Error(), "error at job: job must not be empty"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
