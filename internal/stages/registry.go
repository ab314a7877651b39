// Package stages provides the built-in stage, prefilter and selector units for
// query-log reduction jobs, and a kind registry so jobs can be declared in
// configuration files.
package stages

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"logreduce/internal/config"
	"logreduce/internal/pipeline"
)

// ErrUnknownKind is returned for a kind with no registered factory.
var ErrUnknownKind = errors.New("unknown kind")

// StageFactory builds a stage from its options.
type StageFactory func(opts config.Options) (pipeline.Stage, error)

// PrefilterFactory builds a prefilter from its options.
type PrefilterFactory func(opts config.Options) (pipeline.Prefilter, error)

var (
	mu         sync.RWMutex
	stageKinds = map[string]StageFactory{}
	preKinds   = map[string]PrefilterFactory{}
)

func init() {
	RegisterStage(KindUserHost, newUserHost)
	RegisterStage(KindClean, newClean)
	RegisterStage(KindRegexReplace, newRegexReplace)
	RegisterStage(KindClassify, newClassify)
	RegisterStage(KindFingerprint, newFingerprint)
	RegisterStage(KindSessionSeq, newSessionSeq)
	RegisterStage(KindStoreSort, newStoreSort)

	RegisterPrefilter(KindUnwantedStarts, newUnwantedStarts)
	RegisterPrefilter(KindUnwantedTerms, newUnwantedTerms)
	RegisterPrefilter(KindColumnValues, newColumnValues)
}

// RegisterStage makes a stage kind available. Registering a kind again
// replaces it.
func RegisterStage(kind string, f StageFactory) {
	mu.Lock()
	defer mu.Unlock()
	stageKinds[kind] = f
}

// RegisterPrefilter makes a prefilter kind available.
func RegisterPrefilter(kind string, f PrefilterFactory) {
	mu.Lock()
	defer mu.Unlock()
	preKinds[kind] = f
}

// NewStage builds a stage of the given kind.
func NewStage(kind string, opts config.Options) (pipeline.Stage, error) {
	mu.RLock()
	f, ok := stageKinds[kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("stage %q: %w", kind, ErrUnknownKind)
	}
	st, err := f(opts)
	if err != nil {
		return nil, fmt.Errorf("stage %q: %w", kind, err)
	}
	return st, nil
}

// NewPrefilter builds a prefilter of the given kind.
func NewPrefilter(kind string, opts config.Options) (pipeline.Prefilter, error) {
	mu.RLock()
	f, ok := preKinds[kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("prefilter %q: %w", kind, ErrUnknownKind)
	}
	p, err := f(opts)
	if err != nil {
		return nil, fmt.Errorf("prefilter %q: %w", kind, err)
	}
	return p, nil
}

// Kinds returns the registered stage and prefilter kinds, sorted.
func Kinds() (stageNames, prefilterNames []string) {
	mu.RLock()
	defer mu.RUnlock()
	for k := range stageKinds {
		stageNames = append(stageNames, k)
	}
	for k := range preKinds {
		prefilterNames = append(prefilterNames, k)
	}
	sort.Strings(stageNames)
	sort.Strings(prefilterNames)
	return stageNames, prefilterNames
}

// label is the stage name: the "name" option, or the kind.
func label(kind string, opts config.Options) string {
	return opts.String("name", kind)
}

func set(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
