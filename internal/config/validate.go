package config

import (
	"fmt"
	"slices"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding for a job file.
//
// Path is a dotted path into the config (e.g. "source.kind",
// "stages[1].kind"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

type validateOptions struct {
	stages     []string
	prefilters []string
	stores     []string
}

// ValidateOption customizes Validate.
type ValidateOption func(*validateOptions)

// WithKnownKinds makes Validate reject stage, prefilter and store kinds that
// are not in the given lists. A nil list disables the corresponding check.
func WithKnownKinds(stages, prefilters, stores []string) ValidateOption {
	return func(o *validateOptions) {
		o.stages = stages
		o.prefilters = prefilters
		o.stores = stores
	}
}

var (
	logLevels      = []string{"debug", "info", "warn", "error"}
	logFormats     = []string{"json", "console"}
	metricBackends = []string{"none", "prometheus", "datadog"}
)

// Validate performs static validation of a decoded job file. It does not
// mutate f. Pipeline-level checks that need constructed stages (declared
// inputs, sort placement) happen when the job is built.
//
// Example:
//
//	f, err := config.Load(path, nil)
//	if err != nil { ... }
//	for _, iss := range config.Validate(f) {
//	    fmt.Println(iss.Error())
//	}
func Validate(f File, opts ...ValidateOption) []Issue {
	var o validateOptions
	for _, opt := range opts {
		opt(&o)
	}

	var issues []Issue
	if strings.TrimSpace(f.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels logs and metrics for the run",
		})
	}
	issues = append(issues, validateEndpoint("source", f.Source, o.stores)...)
	issues = append(issues, validateEndpoint("target", f.Target, o.stores)...)
	if f.Source.Kind == f.Target.Kind && f.Source.DSN == f.Target.DSN &&
		f.Source.Dataset != "" && f.Source.Dataset == f.Target.Dataset {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "target.dataset",
			Message:  "target dataset must differ from the source dataset on the same store",
		})
	}
	issues = append(issues, validateSelectors(f.Selectors)...)
	issues = append(issues, validateUnits("prefilters", f.Prefilters, o.prefilters)...)
	issues = append(issues, validateUnits("stages", f.Stages, o.stages)...)
	issues = append(issues, validateOutputs(f.Outputs)...)
	issues = append(issues, validateRuntime(f.Runtime)...)
	issues = append(issues, validateMetrics(f.Metrics)...)
	issues = append(issues, validateLog(f.Log)...)
	return issues
}

func validateEndpoint(path string, e Endpoint, known []string) []Issue {
	var issues []Issue
	switch {
	case strings.TrimSpace(e.Kind) == "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".kind",
			Message:  "kind must not be empty",
		})
	case known != nil && !slices.Contains(known, e.Kind):
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".kind",
			Message:  fmt.Sprintf("unsupported store kind %q (known: %s)", e.Kind, strings.Join(known, ", ")),
		})
	}
	switch {
	case strings.TrimSpace(e.Dataset) == "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".dataset",
			Message:  "dataset must not be empty",
		})
	case strings.Contains(e.Dataset, "."):
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".dataset",
			Message:  fmt.Sprintf("dataset %q must not contain a dot", e.Dataset),
		})
	}
	if strings.TrimSpace(e.DSN) == "" && e.Kind != "duckdb" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     path + ".dsn",
			Message:  "dsn is empty; the connection will fail unless it is set through the environment",
		})
	}
	return issues
}

func validateSelectors(sels []Selector) []Issue {
	var issues []Issue
	for i, s := range sels {
		p := fmt.Sprintf("selectors[%d]", i)
		switch {
		case s.Column == "" && strings.TrimSpace(s.Clause) == "":
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     p,
				Message:  "empty selector is ignored",
			})
		case s.Column != "" && s.Clause != "":
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     p,
				Message:  "selector sets both clause and column",
			})
		case s.Column != "" && len(s.Values) == 0 && s.Value == nil:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     p + ".values",
				Message:  fmt.Sprintf("column selector on %s needs value or values", s.Column),
			})
		case s.Column != "" && len(s.Values) > 0 && s.Value != nil:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     p,
				Message:  "column selector sets both value and values",
			})
		}
	}
	return issues
}

func validateUnits(path string, units []Unit, known []string) []Issue {
	var issues []Issue
	for i, u := range units {
		p := fmt.Sprintf("%s[%d].kind", path, i)
		switch {
		case strings.TrimSpace(u.Kind) == "":
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     p,
				Message:  "kind must not be empty",
			})
		case known != nil && !slices.Contains(known, u.Kind):
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     p,
				Message:  fmt.Sprintf("unknown kind %q", u.Kind),
			})
		}
	}
	return issues
}

func validateOutputs(outs []Output) []Issue {
	if len(outs) == 0 {
		return []Issue{{
			Severity: SeverityError,
			Path:     "outputs",
			Message:  "at least one output column is required",
		}}
	}
	var issues []Issue
	seen := make(map[string]int, len(outs))
	for i, o := range outs {
		p := fmt.Sprintf("outputs[%d]", i)
		name := strings.TrimSpace(o.Name)
		if name == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     p + ".name",
				Message:  "name must not be empty",
			})
			continue
		}
		if j, dup := seen[name]; dup {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     p + ".name",
				Message:  fmt.Sprintf("duplicate output %q (first declared at outputs[%d])", name, j),
			})
		} else {
			seen[name] = i
		}
		if strings.TrimSpace(o.Type) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     p + ".type",
				Message:  fmt.Sprintf("output %q has an empty type", name),
			})
		}
	}
	return issues
}

func validateRuntime(r Runtime) []Issue {
	var issues []Issue
	if r.Workers < 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.workers",
			Message:  "workers must be at least 1",
		})
	}
	if r.Workers > 64 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.workers",
			Message:  fmt.Sprintf("workers=%d opens that many concurrent table transactions", r.Workers),
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	backend := m.Backend
	if backend == "" {
		backend = "none"
	}
	if !slices.Contains(metricBackends, backend) {
		return []Issue{{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unsupported backend %q (known: %s)", m.Backend, strings.Join(metricBackends, ", ")),
		}}
	}
	if backend == "prometheus" && strings.TrimSpace(m.PushgatewayURL) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.pushgateway_url",
			Message:  "prometheus backend requires pushgateway_url",
		})
	}
	if backend == "datadog" && strings.TrimSpace(m.DatadogAddr) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.datadog_addr",
			Message:  "datadog_addr is empty; DD_AGENT_HOST:8125 or 127.0.0.1:8125 is used",
		})
	}
	return issues
}

func validateLog(l Log) []Issue {
	var issues []Issue
	if l.Level != "" && !slices.Contains(logLevels, strings.ToLower(l.Level)) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "log.level",
			Message:  fmt.Sprintf("unsupported level %q", l.Level),
		})
	}
	if l.Format != "" && !slices.Contains(logFormats, strings.ToLower(l.Format)) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "log.format",
			Message:  fmt.Sprintf("unsupported format %q", l.Format),
		})
	}
	return issues
}
