// Package sink implements the RecordSink side of the pipeline: console
// display, an append-only CSV log, an embedded-migration sqlite store, and a
// fan-out wrapper that feeds several sinks from one record stream.
package sink

import (
	"time"

	"github.com/fieldwave/mmwave-ingest/internal/decode"
)

// RecordSink consumes decoded records. Emit is called once per record in
// arrival order, alongside the timestamp of the raw chunk it was decoded
// from; Flush is called every 100 emitted records and once more on
// shutdown. A sink owns whatever resource it writes to and is the only
// writer of that resource.
type RecordSink interface {
	Emit(ts time.Time, record decode.Record) error
	Flush() error
	Close() error
}
