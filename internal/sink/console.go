package sink

import (
	"fmt"
	"io"
	"time"

	"github.com/fieldwave/mmwave-ingest/internal/decode"
)

// Console writes one human-readable line per record to w, matching the
// original implementation's per-kind display format
// (_examples/original_source/src/core/radar_system.py _display_frame_data).
type Console struct {
	w io.Writer
}

// NewConsole returns a Console sink writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Emit(_ time.Time, r decode.Record) error {
	var err error
	switch r.Kind {
	case decode.KindDetectedObject:
		o := r.DetectedObject
		_, err = fmt.Fprintf(c.w, "R%d: %6.1f° %6.1fcm vel:%5.1f peak:%d\n",
			o.SourceID, o.BearingDeg, o.RangeCm, o.VelocityMps, o.PeakVal)
	case decode.KindNoiseProfile:
		n := r.NoiseProfile
		_, err = fmt.Fprintf(c.w, "R%d: NOISE avg=%.1f samples=%d\n",
			n.SourceID, n.AvgLevel, n.SampleCount)
	case decode.KindAzimuthHeatmap:
		h := r.AzimuthHeatmap
		_, err = fmt.Fprintf(c.w, "R%d: HEATMAP max=%d avg=%.1f\n",
			h.SourceID, h.MaxIntensity, h.AvgIntensity)
	}
	return err
}

func (c *Console) Flush() error { return nil }
func (c *Console) Close() error { return nil }
