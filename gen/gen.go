// Package gen writes synthetic MTAG files with known contents, used as
// the oracle when exercising the deserializer.  It produces the header
// line and any number of fixed-size buffers per device, with constant
// data values and deterministic timestamps.
package gen

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"

	"github.com/pkg/errors"

	"github.com/biologging/mtag/format"
	"github.com/biologging/mtag/parse"
)

// Device describes one synthetic buffer stream
type Device struct {
	// Name keys the device in the file header
	Name string

	// ID tags every buffer of this device
	ID int

	// Time is the nominal microseconds between buffer writes; buffer i
	// carries the anchor (i+1)*Time
	Time uint32

	// Header and Data are MTAG format strings
	Header string
	Data   string

	// BufferSize is the framed size of each buffer
	BufferSize int

	// Value is written to every data channel of every packet
	Value int64

	// SplitChannel is forwarded to the header verbatim
	SplitChannel bool

	// NumBuffers is how many buffers to emit
	NumBuffers int

	// ChannelNames names the data channels
	ChannelNames []string
}

// File describes one synthetic MTAG file
type File struct {
	Path     string
	Metadata map[string]interface{}
	Devices  []Device
}

// Header returns the file header the written file will carry
func (f *File) Header() *parse.FileHeader {
	h := &parse.FileHeader{
		Metadata: f.Metadata,
		Buffers:  make(map[string]parse.DeviceSpec, len(f.Devices)),
	}
	for _, d := range f.Devices {
		h.Buffers[d.Name] = parse.DeviceSpec{
			ID:           d.ID,
			Time:         d.Time,
			Header:       d.Header,
			Data:         d.Data,
			BufferSize:   d.BufferSize,
			SplitChannel: d.SplitChannel,
			ChannelNames: d.ChannelNames,
		}
	}
	return h
}

// Write emits the header line and every device's buffers.  Devices are
// interleaved round-robin, one buffer per turn, until each has written
// its count.
func (f *File) Write() error {
	fid, err := os.Create(f.Path)
	if err != nil {
		return errors.Wrap(err, "gen: creating output")
	}
	defer fid.Close()

	line, err := json.Marshal(f.Header())
	if err != nil {
		return errors.Wrap(err, "gen: encoding header")
	}
	line = append(line, '\n')
	if _, err = fid.Write(line); err != nil {
		return errors.Wrap(err, "gen: writing header")
	}

	counts := make([]int, len(f.Devices))
	remaining := 0
	for i, d := range f.Devices {
		counts[i] = d.NumBuffers
		remaining += d.NumBuffers
	}
	for remaining > 0 {
		for i := range f.Devices {
			if counts[i] == 0 {
				continue
			}
			buf, err := f.Devices[i].buffer(f.Devices[i].NumBuffers - counts[i])
			if err != nil {
				return err
			}
			if _, err = fid.Write(buf); err != nil {
				return errors.Wrapf(err, "gen: writing buffer for %q", f.Devices[i].Name)
			}
			counts[i]--
			remaining--
		}
	}
	return nil
}

// buffer builds the i-th (zero-based) framed buffer for the device
func (d *Device) buffer(i int) ([]byte, error) {
	headerSize, err := format.PacketSize(d.Header)
	if err != nil {
		return nil, errors.Wrapf(err, "gen: header of %q", d.Name)
	}
	packetSize, err := format.PacketSize(d.Data)
	if err != nil {
		return nil, errors.Wrapf(err, "gen: data of %q", d.Name)
	}
	numPackets := (d.BufferSize - headerSize) / packetSize
	anchor := int64(i+1) * int64(d.Time)

	buf := make([]byte, 0, d.BufferSize)
	for j := 0; j < len(d.Header); j++ {
		switch d.Header[j] {
		case 'B':
			if j == 0 {
				buf = appendTag(buf, 'B', int64(d.ID))
				continue
			}
			buf = appendTag(buf, 'B', 0)
		case 'T':
			buf = appendTag(buf, 'T', anchor)
		default:
			buf = appendTag(buf, d.Header[j], 0)
		}
	}

	for p := 0; p < numPackets; p++ {
		for j := 0; j < len(d.Data); j++ {
			switch d.Data[j] {
			case 'T':
				t := int64(float64(anchor) + float64(p+1)*float64(d.Time)/float64(numPackets))
				buf = appendTag(buf, 'T', t)
			case 'X', 'x':
				buf = appendTag(buf, d.Data[j], 0)
			default:
				buf = appendTag(buf, d.Data[j], d.Value)
			}
		}
	}

	// zero-filled overflow region out to the frame boundary
	for len(buf) < d.BufferSize {
		buf = append(buf, 0)
	}
	return buf, nil
}

// appendTag encodes one value little-endian at the tag's wire width
func appendTag(buf []byte, tag byte, v int64) []byte {
	switch tag {
	case 'B', 'b', 'X', 'x':
		return append(buf, byte(v))
	case 'H', 'h':
		return binary.LittleEndian.AppendUint16(buf, uint16(v))
	case 'U', 'u':
		return append(buf, byte(v), byte(v>>8), byte(v>>16))
	case 'I', 'i', 'L', 'l', 'T':
		return binary.LittleEndian.AppendUint32(buf, uint32(v))
	case 'f':
		return binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v)))
	}
	return buf
}
