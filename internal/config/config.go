// Package config defines the job file model for logreduce.
//
// A job file names the source and target datasets, the selectors pushed down
// to the source store, the prefilters and stages applied to every table, and
// the output columns written to the target. Files are YAML (JSON is valid
// YAML) and are loaded with Load, which layers environment variables and
// command-line flags over the file.
//
// Example (trimmed):
//
//	job: general-log
//	source: { kind: mysql, dsn: "user:pw@tcp(db:3306)/", dataset: general_log }
//	target: { dataset: processed_log }
//	stages:
//	  - { kind: user_host, options: { users_reject: [root] } }
//	  - { kind: clean }
//	outputs:
//	  - { name: user, type: MEDIUMTEXT }
//	  - { name: query, type: MEDIUMTEXT }
package config

// File is the top-level object decoded from a job file.
type File struct {
	Job        string     `koanf:"job"`
	Source     Endpoint   `koanf:"source"`
	Target     Endpoint   `koanf:"target"`
	Selectors  []Selector `koanf:"selectors"`
	Prefilters []Unit     `koanf:"prefilters"`
	Stages     []Unit     `koanf:"stages"`
	Outputs    []Output   `koanf:"outputs"`
	Runtime    Runtime    `koanf:"runtime"`
	Metrics    Metrics    `koanf:"metrics"`
	Log        Log        `koanf:"log"`
}

// Endpoint identifies a store connection and the dataset used on it.
// Attach maps dataset names to database files for backends that model
// datasets as attached databases (sqlite).
type Endpoint struct {
	Kind    string            `koanf:"kind"`
	DSN     string            `koanf:"dsn"`
	Dataset string            `koanf:"dataset"`
	Attach  map[string]string `koanf:"attach"`
}

// Selector is one source-side filter. It is either a raw boolean clause or a
// column matched against one value or a list of values. In a job file a
// plain string decodes to a Clause.
type Selector struct {
	Clause string   `koanf:"clause"`
	Column string   `koanf:"column"`
	Values []string `koanf:"values"`
	Value  any      `koanf:"value"`
}

// IsClause reports whether s is a raw clause rather than a column selector.
func (s Selector) IsClause() bool { return s.Column == "" }

// Unit is a configured prefilter or stage: a registered kind plus its
// options.
type Unit struct {
	Kind    string  `koanf:"kind"`
	Options Options `koanf:"options"`
}

// Output declares one target column.
type Output struct {
	Name string `koanf:"name"`
	Type string `koanf:"type"`
}

// Runtime controls table-level concurrency, staging and commit policy.
type Runtime struct {
	Workers        int    `koanf:"workers"`
	StagingDir     string `koanf:"staging_dir"`
	PerTableCommit bool   `koanf:"per_table_commit"`
}

// Metrics selects the metrics backend. Backend is one of "none",
// "prometheus" or "datadog".
type Metrics struct {
	Backend        string `koanf:"backend"`
	PushgatewayURL string `koanf:"pushgateway_url"`
	DatadogAddr    string `koanf:"datadog_addr"`
}

// Log configures the process logger.
type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// OutputNames returns the declared output column names in order.
func (f File) OutputNames() []string {
	names := make([]string, len(f.Outputs))
	for i, o := range f.Outputs {
		names[i] = o.Name
	}
	return names
}

// applyDefaults fills the target endpoint from the source where the target
// leaves kind, DSN or attachments unset.
func (f *File) applyDefaults() {
	if f.Target.Kind == "" {
		f.Target.Kind = f.Source.Kind
	}
	if f.Target.DSN == "" && f.Target.Kind == f.Source.Kind {
		f.Target.DSN = f.Source.DSN
	}
	if len(f.Target.Attach) == 0 && f.Target.Kind == f.Source.Kind {
		f.Target.Attach = f.Source.Attach
	}
	for i := range f.Prefilters {
		if f.Prefilters[i].Options == nil {
			f.Prefilters[i].Options = Options{}
		}
	}
	for i := range f.Stages {
		if f.Stages[i].Options == nil {
			f.Stages[i].Options = Options{}
		}
	}
}

// Options is a small helper to fetch typed values from free-form option
// maps. It performs only minimal type coercion and returns provided defaults
// when a key is absent or of an unexpected type.
//
// Options is used for prefilter and stage configuration where the shape
// varies by kind.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. YAML decodes integers as int,
// JSON-style sources as float64, and environment overrides through koanf may
// yield int64; all three are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case int64:
			return int(n)
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns a map[string]string for key when the value is an object
// whose values are strings. Non-string values are ignored. Returns an empty map
// when the key is missing or the value is not an object.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// StringSlice returns a []string for key when the value is an array of strings
// (or an array of interface values containing strings). Returns nil when the
// key is missing or the value is not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// Any returns the raw value for key, or nil when absent.
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}
