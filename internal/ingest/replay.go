package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/fieldwave/mmwave-ingest/internal/ring"
)

// baudBytesPerSecond is the byte-rate implied by the fixed 921,600-baud
// link: 921600 / 8.
const baudBytesPerSecond = baudRate / 8

// ReplaySource substitutes a previously captured byte stream for a live
// serial feed, pacing reads to approximate the original wire rate scaled by
// Speed. On end-of-file it rewinds to the start and loops indefinitely,
// mirroring the original Python ReplayRadarSource this codebase is ported
// from (_examples/original_source/src/interfaces/replay_source.py).
type ReplaySource struct {
	sourceID uint16
	path     string
	speed    float64
	file     *os.File
}

// NewReplaySource opens path for replay at the given speed multiplier
// (1.0 = real-time, as captured).
func NewReplaySource(sourceID uint16, path string, speed float64) (*ReplaySource, error) {
	if speed <= 0 {
		speed = 1.0
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening capture file %q: %w", path, err)
	}

	return &ReplaySource{sourceID: sourceID, path: path, speed: speed, file: f}, nil
}

func (s *ReplaySource) SourceID() uint16 { return s.sourceID }

// Run reads chunkSize-byte chunks from the capture file, sleeping between
// reads so the aggregate rate approximates the original link speed times
// Speed. The replay never blocks waiting for a consumer — chunks are handed
// to stage's non-blocking Put, which drops under the ring's overflow policy
// if the processor falls behind.
func (s *ReplaySource) Run(ctx context.Context, stage *ring.Stage, active *atomic.Bool) error {
	defer s.file.Close()
	diagf("source %d: replaying %s at %.2fx", s.sourceID, s.path, s.speed)

	delay := time.Duration(float64(chunkSize) / float64(baudBytesPerSecond) / s.speed * float64(time.Second))

	buf := make([]byte, chunkSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !waitWhilePaused(ctx, active) {
			return nil
		}

		n, err := s.file.Read(buf)
		if err == io.EOF || n == 0 {
			diagf("source %d: reached end of capture, rewinding", s.sourceID)
			if _, seekErr := s.file.Seek(0, io.SeekStart); seekErr != nil {
				opsf("source %d: rewind failed: %v", s.sourceID, seekErr)
				return fmt.Errorf("replay source %d rewind: %w", s.sourceID, seekErr)
			}
			continue
		}
		if err != nil {
			opsf("source %d: read error on %s: %v", s.sourceID, s.path, err)
			return fmt.Errorf("replay source %d read: %w", s.sourceID, err)
		}

		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		stage.Put(ring.Chunk{SourceID: s.sourceID, Timestamp: time.Now(), Bytes: chunk})
		tracef("source %d: replayed %d bytes", s.sourceID, n)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}
