package parse_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biologging/mtag/format"
	"github.com/biologging/mtag/parse"
)

const headerLine = `{"metadata":{"name":"Lono","species":"Tursiops truncatus"},` +
	`"buffers":{"test":{"id":1,"time":4093,"header":"BTx","data":"H",` +
	`"buffer_size":10,"split_channel":false,"channel_names":["ch1"]}}}`

func TestDecodeHeader(t *testing.T) {
	h, err := parse.DecodeHeader([]byte(headerLine))
	require.NoError(t, err)
	require.Contains(t, h.Buffers, "test")
	spec := h.Buffers["test"]
	assert.Equal(t, 1, spec.ID)
	assert.Equal(t, uint32(4093), spec.Time)
	assert.Equal(t, "BTx", spec.Header)
	assert.Equal(t, "H", spec.Data)
	assert.Equal(t, 10, spec.BufferSize)
	assert.Equal(t, []string{"ch1"}, spec.ChannelNames)
	assert.Equal(t, "Lono", h.Metadata["name"])
}

func TestDecodeHeaderMalformed(t *testing.T) {
	_, err := parse.DecodeHeader([]byte(`{"metadata":`))
	assert.ErrorIs(t, err, parse.ErrHeaderParse)
}

func TestDecodeHeaderNoBuffers(t *testing.T) {
	_, err := parse.DecodeHeader([]byte(`{"metadata":{}}`))
	assert.ErrorIs(t, err, parse.ErrHeaderParse)
}

func TestDecodeHeaderInvalidUTF8(t *testing.T) {
	line := []byte(`{"metadata":{"name":"L` + string([]byte{0xFF}) + `no"},` +
		`"buffers":{"d":{"id":1,"time":1,"header":"BTx","data":"H",` +
		`"buffer_size":10,"split_channel":false,"channel_names":["c"]}}}`)
	h, err := parse.DecodeHeader(line)
	require.NoError(t, err)
	assert.Contains(t, h.Metadata["name"], "�")
}

func TestImportExternalHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "header.json")
	require.NoError(t, os.WriteFile(path, []byte(headerLine), 0o644))

	h, err := parse.ImportExternalHeader(path)
	require.NoError(t, err)
	assert.Contains(t, h.Buffers, "test")
}

func validHeader() *parse.FileHeader {
	h, err := parse.DecodeHeader([]byte(headerLine))
	if err != nil {
		panic(err)
	}
	return h
}

func TestBuildDecoder(t *testing.T) {
	dec, err := parse.BuildDecoder(validHeader())
	require.NoError(t, err)
	require.Contains(t, dec, 1)

	d := dec[1]
	assert.Equal(t, "test", d.Device)
	assert.Equal(t, 6, d.HeaderSize)
	assert.Equal(t, 2, d.DataPacketSize)
	assert.Equal(t, 2, d.NumPackets)
	assert.Equal(t, 0, d.NumOverflowBytes)
	assert.True(t, d.HeaderHasTime)
	assert.False(t, d.DataHasTime)
	assert.Equal(t, 1, d.NumChannels)
	assert.Equal(t, 0, d.NumBuffers)
}

func TestBuildDecoderOverflowBytes(t *testing.T) {
	h := validHeader()
	spec := h.Buffers["test"]
	spec.Data = "HB"
	spec.BufferSize = 8192
	spec.ChannelNames = []string{"ch1", "ch2"}
	h.Buffers["test"] = spec

	dec, err := parse.BuildDecoder(h)
	require.NoError(t, err)
	assert.Equal(t, 2728, dec[1].NumPackets)
	assert.Equal(t, 2, dec[1].NumOverflowBytes)
}

func TestBuildDecoderRejectsBadSpecs(t *testing.T) {
	mutate := func(fn func(spec *parse.DeviceSpec)) *parse.FileHeader {
		h := validHeader()
		spec := h.Buffers["test"]
		fn(&spec)
		h.Buffers["test"] = spec
		return h
	}

	cases := []struct {
		name string
		h    *parse.FileHeader
		err  error
	}{
		{"id out of range", mutate(func(s *parse.DeviceSpec) { s.ID = 300 }), parse.ErrBadSpec},
		{"header missing B", mutate(func(s *parse.DeviceSpec) { s.Header = "Tx" }), parse.ErrBadSpec},
		{"header missing T", mutate(func(s *parse.DeviceSpec) { s.Header = "Bx" }), parse.ErrBadSpec},
		{"two T in data", mutate(func(s *parse.DeviceSpec) { s.Data = "TT" }), format.ErrMultipleTime},
		{"oversize packet", mutate(func(s *parse.DeviceSpec) { s.Data = "IIII" }), parse.ErrBadSpec},
		{"channel name mismatch", mutate(func(s *parse.DeviceSpec) { s.ChannelNames = nil }), parse.ErrBadSpec},
		{"unknown tag", mutate(func(s *parse.DeviceSpec) { s.Data = "Z" }), format.ErrUnknownTag},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := parse.BuildDecoder(c.h)
			assert.ErrorIs(t, err, c.err)
		})
	}
}

func TestBuildDecoderDuplicateID(t *testing.T) {
	h := validHeader()
	second := h.Buffers["test"]
	second.ChannelNames = []string{"other"}
	h.Buffers["second"] = second

	_, err := parse.BuildDecoder(h)
	assert.ErrorIs(t, err, parse.ErrBadSpec)
}

func TestDecoderUniqueIDs(t *testing.T) {
	h := validHeader()
	other := h.Buffers["test"]
	other.ID = 2
	h.Buffers["other"] = other

	dec, err := parse.BuildDecoder(h)
	require.NoError(t, err)
	require.Len(t, dec, 2)
	for id, d := range dec {
		assert.Equal(t, id, d.Spec.ID, fmt.Sprintf("decoder key for %q", d.Device))
	}
}
