package decode

import (
	"encoding/binary"
	"math"

	"gonum.org/v1/gonum/stat"
)

// magic is the 8-byte little-endian sentinel that opens every frame:
// {0x0102, 0x0304, 0x0506, 0x0708} as four little-endian uint16s.
var magic = [8]byte{0x02, 0x01, 0x04, 0x03, 0x06, 0x05, 0x08, 0x07}

const (
	headerSize = 40
	tlvHeaderSize = 8

	tlvTypeDetectedPoints  = 1
	tlvTypeRangeProfile    = 2
	tlvTypeNoiseProfile    = 3
	tlvTypeAzimuthHeatmap  = 4
	tlvTypeRangeDoppler    = 5
	tlvTypeStats           = 6

	rangeFilterMinCm = 5.0
	rangeFilterMaxCm = 5000.0
)

// Options carries the tunable constants that should not be proper literals.
// The zero value is invalid; use DefaultOptions.
type Options struct {
	// VelocityScaleMPSPerLSB converts a raw doppler_idx into metres/second.
	// The correct factor depends on chirp configuration not present in the
	// frame; 0.1 is the long-standing approximation used here.
	VelocityScaleMPSPerLSB float64
}

// DefaultOptions returns the historical approximation used throughout this
// codebase's lifetime.
func DefaultOptions() Options {
	return Options{VelocityScaleMPSPerLSB: 0.1}
}

type header struct {
	version         uint32
	totalPacketLen  uint32
	platform        uint32
	frameNumber     uint32
	timeCPUCycles   uint32
	numDetectedObj  uint32
	numTLVs         uint32
	subframeNumber  uint32
}

// Decode scans data for frames and returns every record it can extract, in
// the order they occur. It never panics, never signals an error, and is
// deterministic: identical input always yields identical output. Structural
// problems (truncated buffers, inconsistent TLV lengths) simply produce
// fewer records; garbage produces zero. Callers own deciding what to do with
// bytes that never assembled into a complete frame; they are not carried
// across calls.
func Decode(data []byte, sourceID uint16) []Record {
	return DecodeWithOptions(data, sourceID, DefaultOptions())
}

// DecodeWithOptions is Decode with an explicit velocity scale factor, for
// callers that load it from configuration instead of accepting the default.
func DecodeWithOptions(data []byte, sourceID uint16, opts Options) []Record {
	var records []Record

	scanFrom := 0
	for scanFrom < len(data) {
		magicPos := indexMagic(data, scanFrom)
		if magicPos == -1 {
			break
		}

		frame := data[magicPos:]
		if len(frame) < headerSize {
			// Not enough bytes left for a header; nothing more to find.
			break
		}

		hdr := parseHeader(frame)

		consumed, frameRecords, ok := decodeTLVs(frame[headerSize:], sourceID, hdr, opts)
		if !ok {
			// Abandon this frame; resume one byte past the sentinel that
			// began it, not past the (possibly bogus) header.
			scanFrom = magicPos + 1
			continue
		}

		records = append(records, frameRecords...)
		scanFrom = magicPos + headerSize + consumed
	}

	return records
}

// indexMagic finds the first occurrence of the sentinel at or after from.
func indexMagic(data []byte, from int) int {
	if from >= len(data) {
		return -1
	}
	for i := from; i+len(magic) <= len(data); i++ {
		if data[i] == magic[0] && bytesEqual(data[i:i+len(magic)], magic[:]) {
			return i
		}
	}
	return -1
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func parseHeader(frame []byte) header {
	return header{
		version:        binary.LittleEndian.Uint32(frame[8:12]),
		totalPacketLen: binary.LittleEndian.Uint32(frame[12:16]),
		platform:       binary.LittleEndian.Uint32(frame[16:20]),
		frameNumber:    binary.LittleEndian.Uint32(frame[20:24]),
		timeCPUCycles:  binary.LittleEndian.Uint32(frame[24:28]),
		numDetectedObj: binary.LittleEndian.Uint32(frame[28:32]),
		numTLVs:        binary.LittleEndian.Uint32(frame[32:36]),
		subframeNumber: binary.LittleEndian.Uint32(frame[36:40]),
	}
}

// decodeTLVs walks numTLVs TLV records starting at the beginning of body
// (the header has already been consumed). It returns the number of bytes of
// body consumed and whether the frame was structurally valid. On failure the
// caller abandons the whole frame and resynchronizes on the next magic word.
func decodeTLVs(body []byte, sourceID uint16, hdr header, opts Options) (int, []Record, bool) {
	var records []Record

	pos := 0
	for i := uint32(0); i < hdr.numTLVs; i++ {
		if pos+tlvHeaderSize > len(body) {
			return 0, nil, false
		}

		tlvType := binary.LittleEndian.Uint32(body[pos : pos+4])
		tlvLen := binary.LittleEndian.Uint32(body[pos+4 : pos+8])
		payloadStart := pos + tlvHeaderSize
		payloadEnd := payloadStart + int(tlvLen)

		if tlvLen > uint32(len(body)) || payloadEnd > len(body) || payloadEnd < payloadStart {
			return 0, nil, false
		}

		payload := body[payloadStart:payloadEnd]

		switch tlvType {
		case tlvTypeDetectedPoints:
			records = append(records, decodeDetectedPoints(payload, sourceID, hdr, opts)...)
		case tlvTypeNoiseProfile:
			if rec, ok := decodeNoiseProfile(payload, sourceID, hdr); ok {
				records = append(records, rec)
			}
		case tlvTypeAzimuthHeatmap:
			if rec, ok := decodeAzimuthHeatmap(payload, sourceID, hdr); ok {
				records = append(records, rec)
			}
		case tlvTypeRangeProfile, tlvTypeRangeDoppler, tlvTypeStats:
			// recognized, not surfaced
		default:
			// unknown type; skip by construction (we already advanced by length)
		}

		pos = payloadEnd
	}

	return pos, records, true
}

const detectedPointDescriptorSize = 4
const detectedPointRecordSize = 12

func decodeDetectedPoints(payload []byte, sourceID uint16, hdr header, opts Options) []Record {
	if len(payload) < detectedPointDescriptorSize {
		return nil
	}

	numObjects := binary.LittleEndian.Uint16(payload[0:2])
	xyzQFormat := binary.LittleEndian.Uint16(payload[2:4])

	count := int(numObjects)
	if int(hdr.numDetectedObj) < count {
		count = int(hdr.numDetectedObj)
	}

	var scale float64 = 1.0
	if xyzQFormat > 0 {
		scale = 1.0 / float64(uint32(1)<<xyzQFormat)
	}

	var records []Record
	for i := 0; i < count; i++ {
		off := detectedPointDescriptorSize + i*detectedPointRecordSize
		if off+detectedPointRecordSize > len(payload) {
			break
		}

		rangeIdx := binary.LittleEndian.Uint16(payload[off : off+2])
		dopplerIdx := int16(binary.LittleEndian.Uint16(payload[off+2 : off+4]))
		peakVal := binary.LittleEndian.Uint16(payload[off+4 : off+6])
		xQ := int16(binary.LittleEndian.Uint16(payload[off+6 : off+8]))
		yQ := int16(binary.LittleEndian.Uint16(payload[off+8 : off+10]))
		zQ := int16(binary.LittleEndian.Uint16(payload[off+10 : off+12]))

		x := float64(xQ) * scale
		y := float64(yQ) * scale
		z := float64(zQ) * scale

		rangeCm := math.Hypot(x, y) * 100
		if !(rangeCm > rangeFilterMinCm && rangeCm < rangeFilterMaxCm) {
			continue
		}

		records = append(records, Record{
			Kind: KindDetectedObject,
			DetectedObject: DetectedObject{
				SourceID:    sourceID,
				FrameNumber: hdr.frameNumber,
				RangeIdx:    rangeIdx,
				DopplerIdx:  dopplerIdx,
				PeakVal:     peakVal,
				X:           x,
				Y:           y,
				Z:           z,
				RangeCm:     rangeCm,
				BearingDeg:  math.Atan2(y, x) * 180 / math.Pi,
				VelocityMps: float64(dopplerIdx) * opts.VelocityScaleMPSPerLSB,
			},
		})
	}

	return records
}

func decodeNoiseProfile(payload []byte, sourceID uint16, hdr header) (Record, bool) {
	if len(payload) < 4 {
		return Record{}, false
	}

	sampleCount := len(payload) / 2
	samples := make([]float64, sampleCount)
	for i := 0; i < sampleCount; i++ {
		samples[i] = float64(binary.LittleEndian.Uint16(payload[i*2 : i*2+2]))
	}

	return Record{
		Kind: KindNoiseProfile,
		NoiseProfile: NoiseProfile{
			SourceID:    sourceID,
			FrameNumber: hdr.frameNumber,
			AvgLevel:    stat.Mean(samples, nil),
			SampleCount: sampleCount,
		},
	}, true
}

func decodeAzimuthHeatmap(payload []byte, sourceID uint16, hdr header) (Record, bool) {
	cellCount := len(payload) / 4
	if cellCount == 0 {
		return Record{}, false
	}

	cells := make([]float64, cellCount)
	var maxIntensity uint32
	for i := 0; i < cellCount; i++ {
		v := binary.LittleEndian.Uint32(payload[i*4 : i*4+4])
		cells[i] = float64(v)
		if v > maxIntensity {
			maxIntensity = v
		}
	}

	return Record{
		Kind: KindAzimuthHeatmap,
		AzimuthHeatmap: AzimuthHeatmap{
			SourceID:     sourceID,
			FrameNumber:  hdr.frameNumber,
			MaxIntensity: maxIntensity,
			AvgIntensity: stat.Mean(cells, nil),
			CellCount:    cellCount,
		},
	}, true
}
