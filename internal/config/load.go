package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment overrides. A double underscore
// separates nesting levels: LOGREDUCE_SOURCE__DSN sets source.dsn.
const EnvPrefix = "LOGREDUCE_"

// FlagKeys maps command-line flag names to the configuration keys they
// override. Flags not listed here are ignored by Load.
var FlagKeys = map[string]string{
	"source-dsn":       "source.dsn",
	"target-dsn":       "target.dsn",
	"workers":          "runtime.workers",
	"staging-dir":      "runtime.staging_dir",
	"per-table-commit": "runtime.per_table_commit",
	"metrics-backend":  "metrics.backend",
	"log-level":        "log.level",
	"log-format":       "log.format",
}

func defaults() map[string]any {
	return map[string]any{
		"runtime.workers": 1,
		"metrics.backend": "none",
		"log.level":       "info",
		"log.format":      "console",
	}
}

// Load reads the job file at path and layers, in increasing precedence,
// built-in defaults, the file, LOGREDUCE_* environment variables and the
// flags in flags that were explicitly set. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (File, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return File{}, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return File{}, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return File{}, fmt.Errorf("load environment: %w", err)
	}
	if flags != nil {
		cb := func(f *pflag.Flag) (string, interface{}) {
			key, ok := FlagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, cb), nil); err != nil {
			return File{}, fmt.Errorf("load flags: %w", err)
		}
	}

	return decode(k)
}

// Parse decodes a job file held in memory. It applies defaults but no
// environment or flag overrides.
func Parse(b []byte) (File, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return File{}, fmt.Errorf("load defaults: %w", err)
	}
	if err := k.Load(rawBytes(b), yaml.Parser()); err != nil {
		return File{}, fmt.Errorf("parse job file: %w", err)
	}
	return decode(k)
}

func decode(k *koanf.Koanf) (File, error) {
	var f File
	err := k.UnmarshalWithConf("", &f, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				selectorHook,
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           &f,
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return File{}, fmt.Errorf("decode job file: %w", err)
	}
	f.applyDefaults()
	return f, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

var selectorType = reflect.TypeOf(Selector{})

// selectorHook decodes a bare string into a clause Selector.
func selectorHook(from, to reflect.Type, data any) (any, error) {
	if to != selectorType || from.Kind() != reflect.String {
		return data, nil
	}
	return Selector{Clause: reflect.ValueOf(data).String()}, nil
}

// rawBytes is a koanf provider over an in-memory document.
type rawBytes []byte

func (b rawBytes) ReadBytes() ([]byte, error) { return b, nil }

func (b rawBytes) Read() (map[string]interface{}, error) {
	return nil, errors.New("config: raw bytes provider does not support Read")
}
