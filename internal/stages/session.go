package stages

import (
	"logreduce/internal/config"
	"logreduce/internal/pipeline"
	"logreduce/internal/records"
)

// KindSessionSeq numbers statements within a session.
const KindSessionSeq = "session_seq"

// SessionSeq sorts records by session column and writes the 1-based position
// of each record within its session. Ties keep the incoming order, so with a
// store-level sort on event_time the sequence follows time.
//
// It holds state across records and implements pipeline.Resetter.
type SessionSeq struct {
	pipeline.Decl
	started bool
	last    any
	n       int64
}

func newSessionSeq(opts config.Options) (pipeline.Stage, error) {
	col := opts.String("column", "thread_id")
	return &SessionSeq{Decl: pipeline.Decl{
		Label: label(KindSessionSeq, opts),
		In:    []string{col},
		Out:   []string{opts.String("output", "seq")},
		Order: pipeline.Sort{Column: col},
	}}, nil
}

// Process implements pipeline.Stage.
func (s *SessionSeq) Process(rec records.Record) (pipeline.Result, error) {
	v := rec[s.In[0]]
	if !s.started || records.Compare(v, s.last) != 0 {
		s.started, s.last, s.n = true, v, 0
	}
	s.n++
	return pipeline.Keep(s.n), nil
}

// Reset implements pipeline.Resetter.
func (s *SessionSeq) Reset() {
	s.started, s.last, s.n = false, nil, 0
}
