package parse

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/biologging/mtag/format"
)

var (
	// ErrHeaderParse is generated when the file header is malformed JSON
	// or misses required fields
	ErrHeaderParse = errors.New("parse: malformed file header")

	// ErrBadSpec is generated when a device specification violates the
	// format invariants
	ErrBadSpec = errors.New("parse: invalid device specification")

	// ErrUnknownID is generated when a buffer carries an ID byte absent
	// from the decoder table
	ErrUnknownID = errors.New("parse: buffer ID not in decoder table")

	// ErrShortRead is generated when the file ends before a full buffer
	ErrShortRead = errors.New("parse: unexpected end of file")
)

// DeviceSpec describes one device's buffers, as declared in the file
// header
type DeviceSpec struct {
	// ID is the one-byte device identifier tagging each buffer
	ID int `json:"id"`

	// Time is the nominal microseconds between buffer writes
	Time uint32 `json:"time"`

	// Header is the format of the per-buffer sub-header, ID byte included
	Header string `json:"header"`

	// Data is the format of one sample packet
	Data string `json:"data"`

	// BufferSize is the total framed size of one buffer in bytes
	BufferSize int `json:"buffer_size"`

	// SplitChannel asks downstream tooling to split channels into
	// separate outputs
	SplitChannel bool `json:"split_channel"`

	// ChannelNames names each data channel, in tag order
	ChannelNames []string `json:"channel_names"`
}

// FileHeader is the single-line JSON document opening every MTAG file
type FileHeader struct {
	Metadata map[string]interface{} `json:"metadata"`
	Buffers  map[string]DeviceSpec  `json:"buffers"`
}

// DecodeHeader parses a header line.  Invalid UTF-8 is replaced rather
// than rejected, matching how loggers occasionally mangle metadata.
func DecodeHeader(line []byte) (*FileHeader, error) {
	cleaned := strings.ToValidUTF8(string(line), "�")
	h := &FileHeader{}
	if err := json.Unmarshal([]byte(cleaned), h); err != nil {
		return nil, errors.Wrap(ErrHeaderParse, err.Error())
	}
	if len(h.Buffers) == 0 {
		return nil, errors.Wrap(ErrHeaderParse, "no buffers declared")
	}
	return h, nil
}

// ImportExternalHeader reads a header document from a side-channel file,
// used when the in-file header is absent or overridden for recovery
func ImportExternalHeader(filename string) (*FileHeader, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "parse: reading external header")
	}
	return DecodeHeader(data)
}

// Decoder is the derived decoding entry for one device
type Decoder struct {
	// Device is the device's name in the file header
	Device string

	// Spec is the declared device specification
	Spec DeviceSpec

	// HeaderSize is the on-wire size of the buffer header, ID byte
	// included
	HeaderSize int

	// DataPacketSize is the on-wire size of one sample packet
	DataPacketSize int

	// NumPackets is the number of whole packets in one buffer
	NumPackets int

	// NumOverflowBytes is the zero-filled remainder after the last packet
	NumOverflowBytes int

	// HeaderHasTime and DataHasTime mark where the T tag lives
	HeaderHasTime bool
	DataHasTime   bool

	// NumChannels is the number of data channels per packet
	NumChannels int

	// NumBuffers is populated by the indexing pass
	NumBuffers int
}

// BuildDecoder derives the ID-keyed decoder table from a file header,
// validating every device specification
func BuildDecoder(h *FileHeader) (map[int]*Decoder, error) {
	decoder := make(map[int]*Decoder, len(h.Buffers))
	for device, spec := range h.Buffers {
		if spec.ID < 0 || spec.ID > 255 {
			return nil, errors.Wrapf(ErrBadSpec, "device %q: id %d outside [0,255]", device, spec.ID)
		}
		if prev, ok := decoder[spec.ID]; ok {
			return nil, errors.Wrapf(ErrBadSpec, "device %q: id %d already used by %q", device, spec.ID, prev.Device)
		}
		if len(spec.Header) == 0 || spec.Header[0] != 'B' {
			return nil, errors.Wrapf(ErrBadSpec, "device %q: header %q must begin with B", device, spec.Header)
		}
		_, headerTimes, err := format.ChannelCount(spec.Header)
		if errors.Is(err, format.ErrMultipleTime) {
			return nil, fmt.Errorf("%w: device %q: header %q: %w", ErrBadSpec, device, spec.Header, err)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "device %q: header %q", device, spec.Header)
		}
		if headerTimes != 1 {
			return nil, errors.Wrapf(ErrBadSpec, "device %q: header %q must contain exactly one T", device, spec.Header)
		}
		dataChannels, dataTimes, err := format.ChannelCount(spec.Data)
		if errors.Is(err, format.ErrMultipleTime) {
			return nil, fmt.Errorf("%w: device %q: data %q: %w", ErrBadSpec, device, spec.Data, err)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "device %q: data %q", device, spec.Data)
		}
		headerSize, err := format.PacketSize(spec.Header)
		if err != nil {
			return nil, errors.Wrapf(err, "device %q: header %q", device, spec.Header)
		}
		dataPacketSize, err := format.PacketSize(spec.Data)
		if err != nil {
			return nil, errors.Wrapf(err, "device %q: data %q", device, spec.Data)
		}
		if headerSize+dataPacketSize > spec.BufferSize {
			return nil, errors.Wrapf(ErrBadSpec, "device %q: header (%d B) plus packet (%d B) exceed buffer size %d",
				device, headerSize, dataPacketSize, spec.BufferSize)
		}
		if len(spec.ChannelNames) != dataChannels {
			return nil, errors.Wrapf(ErrBadSpec, "device %q: %d channel names for %d data channels",
				device, len(spec.ChannelNames), dataChannels)
		}
		numPackets := (spec.BufferSize - headerSize) / dataPacketSize
		decoder[spec.ID] = &Decoder{
			Device:           device,
			Spec:             spec,
			HeaderSize:       headerSize,
			DataPacketSize:   dataPacketSize,
			NumPackets:       numPackets,
			NumOverflowBytes: spec.BufferSize - headerSize - numPackets*dataPacketSize,
			HeaderHasTime:    true,
			DataHasTime:      dataTimes > 0,
			NumChannels:      dataChannels,
		}
	}
	return decoder, nil
}
