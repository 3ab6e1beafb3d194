package format

import (
	"encoding/binary"
	"fmt"
	"math"
)

// UnpackPayload decodes numPackets consecutive little-endian packets from
// raw, laid out per the format string.  It returns one float64 slice of
// length numPackets per non-padding, non-time tag, in left-to-right tag
// order, and the time channel (microseconds) separately when the format
// contains a T tag.  Padding tags consume their byte and emit nothing.
// Bytes beyond numPackets*PacketSize(format) are left for the caller.
//
// Wire values are trusted within their declared width; 24-bit tags are
// zero- or sign-extended per their case.
func UnpackPayload(raw []byte, format string, numPackets int) (channels [][]float64, times []int64, err error) {
	packetSize, err := PacketSize(format)
	if err != nil {
		return nil, nil, err
	}
	need := packetSize * numPackets
	if len(raw) < need {
		return nil, nil, fmt.Errorf("%w: have %d bytes, format %q x%d needs %d",
			ErrShortRead, len(raw), format, numPackets, need)
	}
	_, timeChannels, err := ChannelCount(format)
	if err != nil {
		return nil, nil, err
	}
	// padding tags count toward ChannelCount but carry no samples
	dataChannels := 0
	for i := 0; i < len(format); i++ {
		if t := storage[format[i]]; t != Ignored && t != Time {
			dataChannels++
		}
	}
	channels = make([][]float64, dataChannels)
	for i := range channels {
		channels[i] = make([]float64, 0, numPackets)
	}
	if timeChannels > 0 {
		times = make([]int64, 0, numPackets)
	}

	off := 0
	for p := 0; p < numPackets; p++ {
		ch := 0
		for i := 0; i < len(format); i++ {
			switch format[i] {
			case 'B':
				channels[ch] = append(channels[ch], float64(raw[off]))
				ch++
			case 'b':
				channels[ch] = append(channels[ch], float64(int8(raw[off])))
				ch++
			case 'H':
				channels[ch] = append(channels[ch], float64(binary.LittleEndian.Uint16(raw[off:])))
				ch++
			case 'h':
				channels[ch] = append(channels[ch], float64(int16(binary.LittleEndian.Uint16(raw[off:]))))
				ch++
			case 'U':
				channels[ch] = append(channels[ch], float64(uint24(raw[off:])))
				ch++
			case 'u':
				channels[ch] = append(channels[ch], float64(int24(raw[off:])))
				ch++
			case 'I', 'L':
				channels[ch] = append(channels[ch], float64(binary.LittleEndian.Uint32(raw[off:])))
				ch++
			case 'i', 'l':
				channels[ch] = append(channels[ch], float64(int32(binary.LittleEndian.Uint32(raw[off:]))))
				ch++
			case 'f':
				channels[ch] = append(channels[ch], float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))))
				ch++
			case 'T':
				times = append(times, int64(binary.LittleEndian.Uint32(raw[off:])))
			case 'X', 'x':
				// padding, consumed below
			}
			off += sizes[format[i]]
		}
	}
	return channels, times, nil
}

// UnpackSubHeader decodes the per-buffer sub-header tuple laid out per the
// format string.  The caller has already consumed the leading ID byte, so
// format here is the device header format with its first tag removed.  The
// T slot, if present, is surfaced as the buffer anchor time in
// microseconds; the remaining slots are returned in tag order.
func UnpackSubHeader(raw []byte, format string) (data []float64, time int64, hasTime bool, err error) {
	channels, times, err := UnpackPayload(raw, format, 1)
	if err != nil {
		return nil, 0, false, err
	}
	data = make([]float64, 0, len(channels))
	for _, c := range channels {
		data = append(data, c[0])
	}
	if len(times) > 0 {
		return data, times[0], true, nil
	}
	return data, 0, false, nil
}

// uint24 loads three little-endian bytes with zero extension
func uint24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// int24 loads three little-endian bytes with sign extension
func int24(b []byte) int32 {
	return int32(uint24(b)<<8) >> 8
}
