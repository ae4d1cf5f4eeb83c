package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"github.com/fieldwave/mmwave-ingest/internal/ring"
)

// baudRate is fixed by the vendor link speed; it is not a configuration
// knob.
const baudRate = 921600

// readTimeout bounds each blocking read so the driver can observe context
// cancellation and the active flag within one cycle.
const readTimeout = 50 * time.Millisecond

// SerialSource reads from a live AWR1843-class radar over a serial link
// using go.bug.st/serial, handing the raw byte stream on in chunks rather
// than splitting it into lines.
type SerialSource struct {
	sourceID uint16
	port     serial.Port
	portName string
}

// NewSerialSource opens portName at the fixed protocol baud rate.
func NewSerialSource(sourceID uint16, portName string) (*SerialSource, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port %q: %w", portName, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("setting read timeout on %q: %w", portName, err)
	}

	return &SerialSource{sourceID: sourceID, port: port, portName: portName}, nil
}

// newSerialSourceWithPort builds a SerialSource around an already-open
// serial.Port, bypassing serial.Open. Used by tests to inject a mock port.
func newSerialSourceWithPort(sourceID uint16, port serial.Port, portName string) *SerialSource {
	return &SerialSource{sourceID: sourceID, port: port, portName: portName}
}

func (s *SerialSource) SourceID() uint16 { return s.sourceID }

// Run reads up to chunkSize bytes at a time until ctx is cancelled. A read
// timeout is not an error — it just means no bytes arrived this cycle. A
// hard I/O error (device disconnected) ends this source only; other sources
// are unaffected.
func (s *SerialSource) Run(ctx context.Context, stage *ring.Stage, active *atomic.Bool) error {
	defer s.port.Close()
	diagf("source %d: connected to %s at %d baud", s.sourceID, s.portName, baudRate)

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

		n, err := s.port.Read(buf)
		if err != nil {
			opsf("source %d: read error on %s: %v", s.sourceID, s.portName, err)
			return fmt.Errorf("serial source %d read: %w", s.sourceID, err)
		}

		if n == 0 {
			continue
		}

		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		stage.Put(ring.Chunk{SourceID: s.sourceID, Timestamp: time.Now(), Bytes: chunk})
		tracef("source %d: read %d bytes", s.sourceID, n)
	}
}
