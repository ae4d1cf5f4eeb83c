// Package decode implements the AWR1843-class mmWave radar frame protocol:
// sentinel resynchronization, header validation, and TLV decoding. It is a
// pure function over bytes — no I/O, no shared state, no goroutines.
package decode

// Kind identifies which concrete record a Record carries.
type Kind int

const (
	KindDetectedObject Kind = iota
	KindNoiseProfile
	KindAzimuthHeatmap
)

// Record is the decoder's single output type. Exactly one of the embedded
// fields is meaningful, selected by Kind — this avoids allocating three
// separate output slices when callers mostly want "everything in order."
type Record struct {
	Kind Kind

	DetectedObject DetectedObject
	NoiseProfile   NoiseProfile
	AzimuthHeatmap AzimuthHeatmap
}

// DetectedObject is one point target extracted from a Detected Points TLV.
type DetectedObject struct {
	SourceID    uint16
	FrameNumber uint32

	RangeIdx   uint16
	DopplerIdx int16
	PeakVal    uint16

	X, Y, Z float64 // metres

	RangeCm     float64
	BearingDeg  float64
	VelocityMps float64
}

// NoiseProfile summarizes a Noise Profile TLV.
type NoiseProfile struct {
	SourceID    uint16
	FrameNumber uint32

	AvgLevel    float64
	SampleCount int
}

// AzimuthHeatmap summarizes an Azimuth Static Heatmap TLV.
type AzimuthHeatmap struct {
	SourceID    uint16
	FrameNumber uint32

	MaxIntensity uint32
	AvgIntensity float64
	CellCount    int
}
