// Package pipeline implements the Processor & Emitter: it drains every ring
// stage, decodes each chunk, and forwards records to the configured sink
// through a bounded intermediate queue.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fieldwave/mmwave-ingest/internal/decode"
	"github.com/fieldwave/mmwave-ingest/internal/ring"
	"github.com/fieldwave/mmwave-ingest/internal/sink"
)

// DefaultOutputQueueCapacity is the bounded record queue size between the
// decode loop and the sink loop.
const DefaultOutputQueueCapacity = 5000

// emptyPollInterval is the sleep applied when a drain round across every
// stage produces no chunks (a 2kHz polling cadence).
const emptyPollInterval = 500 * time.Microsecond

// outputQueueTimeout bounds the sink loop's wait for the next record so
// stats can still be reported under zero traffic.
const outputQueueTimeout = 100 * time.Millisecond

// statsInterval is how often the processor reports throughput.
const statsInterval = 3 * time.Second

// flushEvery is the emitted-record cadence at which the sink loop calls
// Flush on the configured sink.
const flushEvery = 100

// emission pairs a decoded record with the timestamp of the chunk it came
// from, since sinks (notably CSV) need the original chunk time, not the
// decode wall-clock time.
type emission struct {
	ts     time.Time
	record decode.Record
}

// Processor owns the drain/decode loop and the sink loop. RunID identifies
// this invocation in the processor's log lines (google/uuid, v4); it is not
// passed to the sink with emitted records.
type Processor struct {
	RunID string

	stages []*ring.Stage
	opts   decode.Options
	sink   sink.RecordSink

	outputQueue chan emission

	decodedCount   atomic.Uint64
	recordsDropped atomic.Uint64
	startedAt      time.Time
}

// Config parameterizes a Processor.
type Config struct {
	Stages              []*ring.Stage
	DecodeOptions       decode.Options
	Sink                sink.RecordSink
	OutputQueueCapacity int
}

// New builds a Processor from cfg, generating a fresh RunID.
func New(cfg Config) *Processor {
	capacity := cfg.OutputQueueCapacity
	if capacity <= 0 {
		capacity = DefaultOutputQueueCapacity
	}

	return &Processor{
		RunID:       uuid.NewString(),
		stages:      cfg.Stages,
		opts:        cfg.DecodeOptions,
		sink:        cfg.Sink,
		outputQueue: make(chan emission, capacity),
	}
}

// Run blocks until ctx is cancelled, running the decode loop and the sink
// loop concurrently. It returns once both have exited and the sink has been
// flushed and closed.
func (p *Processor) Run(ctx context.Context) error {
	p.startedAt = time.Now()
	diagf("run %s: started with %d ring stage(s)", p.RunID, len(p.stages))

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		p.decodeLoop(ctx)
	}()

	var sinkErr error
	go func() {
		defer wg.Done()
		sinkErr = p.sinkLoop(ctx)
	}()

	wg.Wait()
	diagf("run %s: stopped", p.RunID)
	return sinkErr
}

// decodeLoop drains every stage, decodes each chunk, and pushes records
// onto the bounded output queue, dropping the newest record on overflow.
// It also reports throughput stats every statsInterval.
func (p *Processor) decodeLoop(ctx context.Context) {
	lastStats := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		produced := false
		for _, stage := range p.stages {
			chunks := stage.DrainAll()
			for _, chunk := range chunks {
				produced = true
				records := decode.DecodeWithOptions(chunk.Bytes, chunk.SourceID, p.opts)
				for _, rec := range records {
					select {
					case p.outputQueue <- emission{ts: chunk.Timestamp, record: rec}:
						p.decodedCount.Add(1)
					default:
						p.recordsDropped.Add(1)
					}
				}
			}
		}

		if time.Since(lastStats) > statsInterval {
			p.logStats()
			lastStats = time.Now()
		}

		if !produced {
			select {
			case <-ctx.Done():
				return
			case <-time.After(emptyPollInterval):
			}
		}
	}
}

// sinkLoop pops emissions and hands them to the configured sink, flushing
// every flushEvery records and once more on shutdown.
func (p *Processor) sinkLoop(ctx context.Context) error {
	emitted := 0
	for {
		select {
		case <-ctx.Done():
			if p.sink != nil {
				if err := p.sink.Flush(); err != nil {
					opsf("run %s: final flush failed: %v", p.RunID, err)
				}
				if err := p.sink.Close(); err != nil {
					opsf("run %s: sink close failed: %v", p.RunID, err)
					return err
				}
			}
			return nil
		case e := <-p.outputQueue:
			if p.sink == nil {
				continue
			}
			if err := p.sink.Emit(e.ts, e.record); err != nil {
				opsf("run %s: sink emit failed: %v", p.RunID, err)
				continue
			}
			emitted++
			if emitted%flushEvery == 0 {
				if err := p.sink.Flush(); err != nil {
					opsf("run %s: periodic flush failed: %v", p.RunID, err)
				}
			}
		case <-time.After(outputQueueTimeout):
		}
	}
}

func (p *Processor) logStats() {
	elapsed := time.Since(p.startedAt).Seconds()
	decoded := p.decodedCount.Load()
	var hz float64
	if elapsed > 0 {
		hz = float64(decoded) / elapsed
	}

	var chunksDropped uint64
	for _, stage := range p.stages {
		chunksDropped += stage.Dropped()
	}

	diagf("run %s: %.1f rec/s (%d total), chunks dropped %d, records dropped %d",
		p.RunID, hz, decoded, chunksDropped, p.recordsDropped.Load())
}

// DecodedCount returns the number of records handed to the output queue so far.
func (p *Processor) DecodedCount() uint64 { return p.decodedCount.Load() }

// RecordsDropped returns the number of records dropped due to a full output queue.
func (p *Processor) RecordsDropped() uint64 { return p.recordsDropped.Load() }
