package decode

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frameBuilder assembles a synthetic frame byte-for-byte the way the real
// firmware would, so tests exercise the exact wire format rather than a
// simplified stand-in.
type frameBuilder struct {
	frameNumber    uint32
	numDetectedObj uint32
	tlvs           [][]byte
}

func newFrame(frameNumber uint32, numDetectedObj uint32) *frameBuilder {
	return &frameBuilder{frameNumber: frameNumber, numDetectedObj: numDetectedObj}
}

func (f *frameBuilder) addTLV(tlvType uint32, payload []byte) *frameBuilder {
	tlv := make([]byte, tlvHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(tlv[0:4], tlvType)
	binary.LittleEndian.PutUint32(tlv[4:8], uint32(len(payload)))
	copy(tlv[8:], payload)
	f.tlvs = append(f.tlvs, tlv)
	return f
}

func (f *frameBuilder) bytes() []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:8], magic[:])
	binary.LittleEndian.PutUint32(buf[8:12], 1)  // version
	binary.LittleEndian.PutUint32(buf[16:20], 1) // platform
	binary.LittleEndian.PutUint32(buf[20:24], f.frameNumber)
	binary.LittleEndian.PutUint32(buf[28:32], f.numDetectedObj)
	binary.LittleEndian.PutUint32(buf[32:36], uint32(len(f.tlvs)))

	for _, tlv := range f.tlvs {
		buf = append(buf, tlv...)
	}
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(buf)))
	return buf
}

func detectedPointsPayload(xyzQFormat uint16, points ...[6]int16) []byte {
	payload := make([]byte, detectedPointDescriptorSize+len(points)*detectedPointRecordSize)
	binary.LittleEndian.PutUint16(payload[0:2], uint16(len(points)))
	binary.LittleEndian.PutUint16(payload[2:4], xyzQFormat)
	for i, p := range points {
		off := detectedPointDescriptorSize + i*detectedPointRecordSize
		binary.LittleEndian.PutUint16(payload[off:off+2], uint16(p[0]))
		binary.LittleEndian.PutUint16(payload[off+2:off+4], uint16(p[1]))
		binary.LittleEndian.PutUint16(payload[off+4:off+6], uint16(p[2]))
		binary.LittleEndian.PutUint16(payload[off+6:off+8], uint16(p[3]))
		binary.LittleEndian.PutUint16(payload[off+8:off+10], uint16(p[4]))
		binary.LittleEndian.PutUint16(payload[off+10:off+12], uint16(p[5]))
	}
	return payload
}

func u16Payload(values ...uint16) []byte {
	buf := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(buf[i*2:i*2+2], v)
	}
	return buf
}

func u32Payload(values ...uint32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], v)
	}
	return buf
}

// --- End-to-end scenarios ---

func TestDecode_EmptyBuffer(t *testing.T) {
	assert.Empty(t, Decode(nil, 1))
	assert.Empty(t, Decode([]byte{}, 1))
}

func TestDecode_AllGarbage(t *testing.T) {
	garbage := make([]byte, 100)
	for i := range garbage {
		garbage[i] = 0xFF
	}
	assert.Empty(t, Decode(garbage, 1))
}

func TestDecode_SingleDetectedObject(t *testing.T) {
	// range_idx=100, doppler_idx=-5, peak_val=200, x_q=256, y_q=256, z_q=0, Q=8
	payload := detectedPointsPayload(8, [6]int16{100, -5, 200, 256, 256, 0})
	frame := newFrame(42, 1).addTLV(tlvTypeDetectedPoints, payload).bytes()

	got := Decode(frame, 7)
	require.Len(t, got, 1)

	obj := got[0].DetectedObject
	assert.Equal(t, KindDetectedObject, got[0].Kind)
	assert.Equal(t, uint16(7), obj.SourceID)
	assert.Equal(t, uint32(42), obj.FrameNumber)
	assert.InDelta(t, 1.0, obj.X, 1e-6)
	assert.InDelta(t, 1.0, obj.Y, 1e-6)
	assert.InDelta(t, 0.0, obj.Z, 1e-6)
	assert.InDelta(t, 141.421356, obj.RangeCm, 1e-4)
	assert.InDelta(t, 45.0, obj.BearingDeg, 1e-6)
	assert.InDelta(t, -0.5, obj.VelocityMps, 1e-9)
}

func TestDecode_DetectedObjectPlusNoiseProfile(t *testing.T) {
	dp := detectedPointsPayload(8, [6]int16{100, -5, 200, 256, 256, 0})
	noise := u16Payload(10, 20, 30, 40, 50, 60, 70, 80, 90, 100)

	frame := newFrame(1, 1).
		addTLV(tlvTypeDetectedPoints, dp).
		addTLV(tlvTypeNoiseProfile, noise).
		bytes()

	got := Decode(frame, 1)
	require.Len(t, got, 2)
	assert.Equal(t, KindDetectedObject, got[0].Kind)
	assert.Equal(t, KindNoiseProfile, got[1].Kind)
	assert.InDelta(t, 55.0, got[1].NoiseProfile.AvgLevel, 1e-9)
	assert.Equal(t, 10, got[1].NoiseProfile.SampleCount)
}

func TestDecode_TwoFramesWithGarbageBetween(t *testing.T) {
	f1 := newFrame(1, 1).addTLV(tlvTypeDetectedPoints,
		detectedPointsPayload(8, [6]int16{1, 1, 1, 256, 256, 0})).bytes()
	f2 := newFrame(2, 1).addTLV(tlvTypeDetectedPoints,
		detectedPointsPayload(8, [6]int16{2, 2, 2, 512, 512, 0})).bytes()

	rng := rand.New(rand.NewSource(1))
	garbage := make([]byte, 17)
	for {
		for i := range garbage {
			garbage[i] = byte(rng.Intn(256))
		}
		if indexMagic(garbage, 0) == -1 {
			break
		}
	}

	buf := append(append(append([]byte{}, f1...), garbage...), f2...)
	got := Decode(buf, 1)
	require.Len(t, got, 2)
	assert.Equal(t, uint32(1), got[0].DetectedObject.FrameNumber)
	assert.Equal(t, uint32(2), got[1].DetectedObject.FrameNumber)
}

func TestDecode_TruncatedTLVLength(t *testing.T) {
	frame := newFrame(1, 1).bytes()
	// Append a TLV header declaring far more payload than actually follows.
	tlvHeader := make([]byte, 8)
	binary.LittleEndian.PutUint32(tlvHeader[0:4], tlvTypeDetectedPoints)
	binary.LittleEndian.PutUint32(tlvHeader[4:8], 10000)
	binary.LittleEndian.PutUint32(frame[32:36], 1) // numTLVs
	frame = append(frame, tlvHeader...)
	frame = append(frame, []byte{1, 2, 3}...) // far short of declared length

	assert.Empty(t, Decode(frame, 1))
}

func TestDecode_TruncationDoesNotAffectPrecedingFrame(t *testing.T) {
	good := newFrame(9, 1).addTLV(tlvTypeDetectedPoints,
		detectedPointsPayload(8, [6]int16{1, 1, 1, 256, 256, 0})).bytes()

	bad := newFrame(10, 1).bytes()
	binary.LittleEndian.PutUint32(bad[32:36], 1)
	tlvHeader := make([]byte, 8)
	binary.LittleEndian.PutUint32(tlvHeader[0:4], tlvTypeDetectedPoints)
	binary.LittleEndian.PutUint32(tlvHeader[4:8], 999)
	bad = append(bad, tlvHeader...)

	buf := append(append([]byte{}, good...), bad...)
	got := Decode(buf, 1)
	require.Len(t, got, 1)
	assert.Equal(t, uint32(9), got[0].DetectedObject.FrameNumber)
}

func TestDecode_BandPassFilterRejectsShortRange(t *testing.T) {
	// y_q=10 at Q8 -> y=10/256=0.0390625m -> range_cm ~3.9 -> filtered out.
	payload := detectedPointsPayload(8, [6]int16{0, 0, 0, 0, 10, 0})
	frame := newFrame(1, 1).addTLV(tlvTypeDetectedPoints, payload).bytes()
	assert.Empty(t, Decode(frame, 1))
}

func TestDecode_AzimuthHeatmap(t *testing.T) {
	payload := u32Payload(10, 20, 100, 5)
	frame := newFrame(1, 0).addTLV(tlvTypeAzimuthHeatmap, payload).bytes()

	got := Decode(frame, 1)
	require.Len(t, got, 1)
	assert.Equal(t, KindAzimuthHeatmap, got[0].Kind)
	assert.Equal(t, uint32(100), got[0].AzimuthHeatmap.MaxIntensity)
	assert.InDelta(t, 33.75, got[0].AzimuthHeatmap.AvgIntensity, 1e-9)
	assert.Equal(t, 4, got[0].AzimuthHeatmap.CellCount)
}

func TestDecode_SkippedTLVTypesProduceNoRecords(t *testing.T) {
	frame := newFrame(1, 0).
		addTLV(tlvTypeRangeProfile, make([]byte, 16)).
		addTLV(tlvTypeRangeDoppler, make([]byte, 16)).
		addTLV(tlvTypeStats, make([]byte, 8)).
		addTLV(99, make([]byte, 4)).
		bytes()
	assert.Empty(t, Decode(frame, 1))
}

// --- Invariants ---

func TestDecode_Deterministic(t *testing.T) {
	frame := newFrame(5, 1).addTLV(tlvTypeDetectedPoints,
		detectedPointsPayload(8, [6]int16{1, 1, 1, 256, 256, 0})).bytes()
	a := Decode(frame, 3)
	b := Decode(frame, 3)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("decode is not deterministic: %s", diff)
	}
}

func TestDecode_NeverPanicsOnArbitraryInput(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		n := rng.Intn(200)
		buf := make([]byte, n)
		rng.Read(buf)
		assert.NotPanics(t, func() { Decode(buf, 1) })
	}
}

func TestDecode_PrependingGarbageIsIdempotent(t *testing.T) {
	frame := newFrame(1, 1).addTLV(tlvTypeDetectedPoints,
		detectedPointsPayload(8, [6]int16{1, 1, 1, 256, 256, 0})).bytes()

	base := Decode(frame, 1)
	require.Len(t, base, 1)

	for _, garbageLen := range []int{0, 1, 7, 64} {
		garbage := make([]byte, garbageLen)
		for i := range garbage {
			garbage[i] = 0xAB
		}
		withGarbage := append(append([]byte{}, garbage...), frame...)
		got := Decode(withGarbage, 1)
		if diff := cmp.Diff(base, got); diff != "" {
			t.Fatalf("garbage prefix (%d bytes) changed output: %s", garbageLen, diff)
		}
	}
}

func TestDecode_NoSentinelProducesZeroRecords(t *testing.T) {
	buf := make([]byte, 64)
	for i := range buf {
		buf[i] = byte(i)
	}
	assert.Empty(t, Decode(buf, 1))
}

func TestDecode_RangeIsFiniteAndNonNegativeWhenEmitted(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		x := int16(rng.Intn(4000) - 2000)
		y := int16(rng.Intn(4000) - 2000)
		payload := detectedPointsPayload(8, [6]int16{0, int16(rng.Intn(200) - 100), 0, x, y, 0})
		frame := newFrame(1, 1).addTLV(tlvTypeDetectedPoints, payload).bytes()
		for _, rec := range Decode(frame, 1) {
			assert.Greater(t, rec.DetectedObject.RangeCm, rangeFilterMinCm)
			assert.Less(t, rec.DetectedObject.RangeCm, rangeFilterMaxCm)
			assert.GreaterOrEqual(t, rec.DetectedObject.BearingDeg, -180.0)
			assert.LessOrEqual(t, rec.DetectedObject.BearingDeg, 180.0)
		}
	}
}
