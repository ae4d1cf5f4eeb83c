package sink

import (
	"errors"
	"time"

	"github.com/fieldwave/mmwave-ingest/internal/decode"
)

// Multi fans one record stream out to several sinks, continuing past a
// single sink's error so one broken writer does not starve the others.
type Multi struct {
	sinks []RecordSink
}

// NewMulti wraps sinks as one RecordSink. A nil entry is skipped.
func NewMulti(sinks ...RecordSink) *Multi {
	filtered := make([]RecordSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &Multi{sinks: filtered}
}

func (m *Multi) Emit(ts time.Time, r decode.Record) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Emit(ts, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Flush() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
