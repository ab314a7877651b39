package stages

import (
	"logreduce/internal/config"
	"logreduce/internal/pipeline"
	"logreduce/internal/records"
)

// KindStoreSort requests an ORDER BY on the fetch query.
const KindStoreSort = "store_sort"

// StoreSort declares a store-level sort and passes records through.
type StoreSort struct {
	pipeline.Decl
}

func newStoreSort(opts config.Options) (pipeline.Stage, error) {
	return &StoreSort{Decl: pipeline.Decl{
		Label: label(KindStoreSort, opts),
		Order: pipeline.Sort{Store: opts.String("expression", "event_time")},
	}}, nil
}

// Process implements pipeline.Stage.
func (StoreSort) Process(records.Record) (pipeline.Result, error) { return pipeline.Keep(), nil }
