package parse

import (
	"io"

	"github.com/pkg/errors"

	"github.com/biologging/mtag/accum"
	"github.com/biologging/mtag/format"
	"github.com/biologging/mtag/sink"
	"github.com/biologging/mtag/util"
)

// parser tunables; NumToPop buffers are drained whenever an accumulator
// crosses BufferPopBoundary
const (
	// DefaultNumToPop is the number of buffers drained per threshold crossing
	DefaultNumToPop = 1024

	// DefaultBufferPopBoundary is the queued-buffer count that triggers a drain
	DefaultBufferPopBoundary = 1280
)

// FileParser deserializes one MTAG file into a columnar sink.  It owns
// the reader, the decoder table and the per-device accumulators for the
// duration of Parse.
type FileParser struct {
	// File is the underlying reader; its progress callback may be set
	// before Parse for front-end reporting
	File *FileReader

	// Sink receives the decoded columns; it is exclusively the parser's
	// while Parse runs, and is left finalizable if Parse aborts
	Sink sink.Sink

	// Header and Decoder are populated by Parse
	Header  *FileHeader
	Decoder map[int]*Decoder

	// NumToPop and BufferPopBoundary tune draining; BufferPopBoundary is
	// raised to NumToPop when set below it
	NumToPop          int
	BufferPopBoundary int

	// TotBuffers is the file-wide buffer count found by the indexing pass
	TotBuffers int

	data map[int]*accum.Buffer
}

// NewFileParser returns a parser for the named file writing into s, with
// the default drain tuning
func NewFileParser(filename string, s sink.Sink) *FileParser {
	return &FileParser{
		File:              NewFileReader(filename),
		Sink:              s,
		NumToPop:          DefaultNumToPop,
		BufferPopBoundary: DefaultBufferPopBoundary,
	}
}

// Parse runs the full deserialization: read the header, derive the
// decoder table, index the file by device, pre-allocate the sink, then
// stream every buffer through its accumulator and drain chunks into the
// sink.  headerFile, when non-empty, names an external JSON header used
// instead of the in-file line.
//
// All errors are fatal and surface immediately; nothing is retried.
func (p *FileParser) Parse(headerFile string) error {
	if p.BufferPopBoundary < p.NumToPop {
		p.BufferPopBoundary = p.NumToPop
	}
	if err := p.File.Open(); err != nil {
		return err
	}
	if err := p.parse(headerFile); err != nil {
		// the file is released, the sink stays finalizable by the caller
		p.File.Close()
		return err
	}
	return util.MergeErrors([]error{p.Sink.Finalize(), p.File.Close()})
}

func (p *FileParser) parse(headerFile string) error {
	var err error
	if headerFile != "" {
		p.Header, err = ImportExternalHeader(headerFile)
	} else {
		var line []byte
		line, err = p.File.ReadLine()
		if err == nil {
			p.Header, err = DecodeHeader(line)
		}
	}
	if err != nil {
		return err
	}

	p.Decoder, err = BuildDecoder(p.Header)
	if err != nil {
		return err
	}

	if err = p.countBuffers(); err != nil {
		return err
	}

	for _, dec := range p.Decoder {
		if dec.NumBuffers == 0 {
			continue
		}
		err = p.Sink.Preallocate(dec.Device, dec.NumPackets*dec.NumBuffers, dec.NumChannels, dec.NumPackets)
		if err != nil {
			return errors.Wrapf(err, "parse: preallocating %q", dec.Device)
		}
	}
	if err = p.Sink.WriteMetadata(p.Header.Metadata); err != nil {
		return errors.Wrap(err, "parse: writing metadata")
	}

	p.data = make(map[int]*accum.Buffer, len(p.Decoder))
	for id, dec := range p.Decoder {
		p.data[id] = accum.New(dec.NumChannels, p.BufferPopBoundary, dec.NumPackets)
	}

	for read := 0; read < p.TotBuffers; read++ {
		if err = p.readDataBuffer(); err != nil {
			return err
		}
	}

	// consume whatever remains queued
	for id, buf := range p.data {
		if buf.NumBuffers() == 0 {
			continue
		}
		if err = p.drain(id, buf.NumBuffers()); err != nil {
			return err
		}
	}
	return nil
}

// countBuffers is the indexing pass: walk the file buffer by buffer,
// counting per device, then rewind to where it started
func (p *FileParser) countBuffers() error {
	if err := p.File.SaveCurrentLoc(); err != nil {
		return err
	}
	loc, err := p.File.Tell()
	if err != nil {
		return err
	}
	for loc < p.File.Size() {
		id, err := p.readID()
		if err != nil {
			return err
		}
		dec, ok := p.Decoder[id]
		if !ok {
			return errors.Wrapf(ErrUnknownID, "id %d at offset %d during indexing", id, loc)
		}
		dec.NumBuffers++
		p.TotBuffers++
		if err = p.File.Seek(int64(dec.Spec.BufferSize-1), io.SeekCurrent); err != nil {
			return err
		}
		if loc, err = p.File.Tell(); err != nil {
			return err
		}
	}
	return p.File.Restore()
}

func (p *FileParser) readID() (int, error) {
	b, err := p.File.Read(1)
	if err != nil {
		return 0, err
	}
	return int(b[0]), nil
}

// readDataBuffer decodes one framed buffer and pushes it through the
// matching accumulator, draining when the accumulator asks for it
func (p *FileParser) readDataBuffer() error {
	loc, _ := p.File.Tell()
	id, err := p.readID()
	if err != nil {
		return err
	}
	dec, ok := p.Decoder[id]
	if !ok {
		return errors.Wrapf(ErrUnknownID, "id %d at offset %d", id, loc)
	}

	raw, err := p.File.Read(dec.HeaderSize - 1)
	if err != nil {
		return err
	}
	headerData, headerTime, hasHeaderTime, err := format.UnpackSubHeader(raw, dec.Spec.Header[1:])
	if err != nil {
		return errors.Wrapf(err, "parse: sub-header of %q at offset %d", dec.Device, loc)
	}

	raw, err = p.File.Read(dec.Spec.BufferSize - dec.HeaderSize)
	if err != nil {
		return err
	}
	// the trailing overflow bytes of raw are zero padding; the unpacker
	// stops after NumPackets whole packets
	data, times, err := format.UnpackPayload(raw, dec.Spec.Data, dec.NumPackets)
	if err != nil {
		return errors.Wrapf(err, "parse: payload of %q at offset %d", dec.Device, loc)
	}

	buf := p.data[id]
	full, err := buf.Append(headerData, headerTime, hasHeaderTime, data, times)
	if err != nil {
		return errors.Wrapf(err, "parse: device %q", dec.Device)
	}
	if full {
		n := p.NumToPop
		if pending := buf.NumBuffers(); pending < n {
			n = pending
		}
		return p.drain(id, n)
	}
	return nil
}

func (p *FileParser) drain(id, nBuffers int) error {
	dec := p.Decoder[id]
	chunk, err := p.data[id].Pop(nBuffers, dec.NumPackets, dec.NumChannels)
	if err != nil {
		return errors.Wrapf(err, "parse: draining %q", dec.Device)
	}
	if err = p.Sink.Append(dec.Device, chunk); err != nil {
		return errors.Wrapf(err, "parse: appending to %q", dec.Device)
	}
	return nil
}
