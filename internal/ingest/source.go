// Package ingest implements the Source Driver layer: one logical worker per
// ByteSource, pushing timestamped RawChunks into that source's ring stage.
package ingest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/fieldwave/mmwave-ingest/internal/ring"
)

// chunkSize is the per-read buffer size shared by every driver variant.
const chunkSize = 2048

// Source is one logical origin of radar bytes — a serial device, a capture
// file being replayed, or a network capture. Run owns the worker loop: it
// reads chunks and pushes them into stage until ctx is cancelled or the
// source ends (a read error, or the end of a pcap capture).
// Active gates whether the source is currently permitted to read; a cleared
// flag suspends reads without tearing down the underlying connection.
type Source interface {
	SourceID() uint16
	Run(ctx context.Context, stage *ring.Stage, active *atomic.Bool) error
}

// waitWhilePaused blocks in 10ms increments while active is false.
// Returns false if ctx was cancelled while waiting.
func waitWhilePaused(ctx context.Context, active *atomic.Bool) bool {
	for !active.Load() {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
	return true
}

// NewActiveFlag returns an atomic.Bool initialized to true (running).
func NewActiveFlag() *atomic.Bool {
	a := &atomic.Bool{}
	a.Store(true)
	return a
}
