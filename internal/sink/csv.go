package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fieldwave/mmwave-ingest/internal/decode"
)

// csvHeader is the exact column order this codebase's capture tooling
// expects for test reproducibility.
var csvHeader = []string{
	"timestamp", "source_id", "frame_number", "bearing_deg", "range_cm",
	"velocity_or_intensity", "x", "y", "z", "peak_val", "range_idx", "doppler_idx",
}

// CSV is an append-only tabular RecordSink. One row is written per Emit
// call; for non-detected records the coordinate columns are zero and
// velocity_or_intensity carries the noise level or heatmap max.
type CSV struct {
	file *os.File
	w    *csv.Writer
}

// NewCSV creates (or truncates) path and writes the header row.
func NewCSV(path string) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating csv sink %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing csv header for %q: %w", path, err)
	}

	return &CSV{file: f, w: w}, nil
}

func (c *CSV) Emit(ts time.Time, r decode.Record) error {
	var row []string
	switch r.Kind {
	case decode.KindDetectedObject:
		o := r.DetectedObject
		row = []string{
			formatTimestamp(ts), formatU16(o.SourceID), formatU32(o.FrameNumber),
			formatFloat(o.BearingDeg), formatFloat(o.RangeCm), formatFloat(o.VelocityMps),
			formatFloat(o.X), formatFloat(o.Y), formatFloat(o.Z),
			formatU16(o.PeakVal), formatU16(o.RangeIdx), strconv.Itoa(int(o.DopplerIdx)),
		}
	case decode.KindNoiseProfile:
		n := r.NoiseProfile
		row = []string{
			formatTimestamp(ts), formatU16(n.SourceID), "0",
			"0", "0", formatFloat(n.AvgLevel), "0", "0", "0", "0", "0", "0",
		}
	case decode.KindAzimuthHeatmap:
		h := r.AzimuthHeatmap
		row = []string{
			formatTimestamp(ts), formatU16(h.SourceID), "0",
			"0", "0", formatU32(h.MaxIntensity), "0", "0", "0", "0", "0", "0",
		}
	default:
		return fmt.Errorf("csv sink: unknown record kind %v", r.Kind)
	}

	return c.w.Write(row)
}

func (c *CSV) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

func (c *CSV) Close() error {
	c.w.Flush()
	return c.file.Close()
}

func formatTimestamp(ts time.Time) string {
	return strconv.FormatFloat(float64(ts.UnixNano())/1e9, 'f', 6, 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func formatU16(v uint16) string { return strconv.FormatUint(uint64(v), 10) }
func formatU32(v uint32) string { return strconv.FormatUint(uint64(v), 10) }
