// Package h264 provides Annex-B NAL unit helpers used to inspect encoder
// output: splitting access units, classifying NAL units and extracting the
// parameter sets receivers need before the first picture.
package h264

// NAL unit types relevant to a low-latency stream.
const (
	NALTypeSlice = 1
	NALTypeIDR   = 5
	NALTypeSEI   = 6
	NALTypeSPS   = 7
	NALTypePPS   = 8
	NALTypeAUD   = 9

	naluTypeBitmask = 0x1F
)

// StartCode returns the four byte Annex-B start code.
func StartCode() []byte { return []byte{0x00, 0x00, 0x00, 0x01} }

// NALType returns the type of a NAL unit without start code, or 0 for an
// empty unit.
func NALType(nalu []byte) byte {
	if len(nalu) == 0 {
		return 0
	}
	return nalu[0] & naluTypeBitmask
}

// Split returns the NAL units of an Annex-B byte stream with their start
// codes removed. Data without any start code is returned as one unit.
func Split(stream []byte) [][]byte {
	var units [][]byte
	emitNalus(stream, func(nalu []byte) {
		if len(nalu) > 0 {
			units = append(units, nalu)
		}
	})
	return units
}

func emitNalus(nals []byte, emit func([]byte)) {
	// query start code
	nextInd := func(nalu []byte, start int) (indStart int, indLen int) {
		zeroCount := 0

		for i, b := range nalu[start:] {
			if b == 0 {
				zeroCount++
				continue
			} else if b == 1 {
				if zeroCount >= 2 {
					return start + i - zeroCount, zeroCount + 1
				}
			}
			zeroCount = 0
		}
		return -1, -1
	}

	nextIndStart, nextIndLen := nextInd(nals, 0)
	if nextIndStart == -1 {
		emit(nals)
		return
	}

	if nextIndStart > 0 {
		emit(nals[:nextIndStart])
	}
	for nextIndStart != -1 {
		prevStart := nextIndStart + nextIndLen
		nextIndStart, nextIndLen = nextInd(nals, prevStart)
		if nextIndStart != -1 {
			emit(nals[prevStart:nextIndStart])
		} else {
			// Emit until end of stream, no end indicator found
			emit(nals[prevStart:])
		}
	}
}

// ParameterSets returns the SPS and PPS units of stream re-joined as an
// Annex-B byte stream, or nil when the stream carries neither.
func ParameterSets(stream []byte) []byte {
	var out []byte
	for _, nalu := range Split(stream) {
		switch NALType(nalu) {
		case NALTypeSPS, NALTypePPS:
			out = append(out, StartCode()...)
			out = append(out, nalu...)
		}
	}
	return out
}

// HasIDR reports whether stream contains an IDR slice.
func HasIDR(stream []byte) bool {
	for _, nalu := range Split(stream) {
		if NALType(nalu) == NALTypeIDR {
			return true
		}
	}
	return false
}

// Join concatenates NAL units into an Annex-B byte stream.
func Join(units ...[]byte) []byte {
	var out []byte
	for _, nalu := range units {
		out = append(out, StartCode()...)
		out = append(out, nalu...)
	}
	return out
}
