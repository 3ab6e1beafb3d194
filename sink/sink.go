// Package sink defines the columnar store contract the deserializer
// writes into, and two implementations: an in-memory store and a FITS
// archive writer.
//
// Per device the store holds two columns, time (seconds, float64) and
// data (float64, one column per channel).  Columns are created at their
// expected final length, grow by doubling when appends exceed it, and
// are truncated to the written length on Finalize, so an aborted parse
// still leaves a consistent store.
package sink

import (
	"math"

	"github.com/pkg/errors"

	"github.com/biologging/mtag/accum"
)

// ErrUnknownDevice is generated when a chunk arrives for a device that
// was never pre-allocated
var ErrUnknownDevice = errors.New("sink: append to device without columns")

// Sink receives decoded per-device columns
type Sink interface {
	// Preallocate creates the device's time and data columns at their
	// expected total length; chunkHint is the device's samples-per-buffer
	Preallocate(device string, totalSamples, numChannels, chunkHint int) error

	// Append writes one drained chunk, growing the columns as needed
	Append(device string, chunk accum.Chunk) error

	// WriteMetadata mirrors the file metadata into the store; JSON null
	// becomes NaN
	WriteMetadata(meta map[string]interface{}) error

	// Finalize truncates every column to its written length and closes
	// the store
	Finalize() error
}

// sanitizeMeta walks a decoded JSON tree replacing null with NaN, the
// only value the numeric store can hold for "absent"
func sanitizeMeta(meta map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(meta))
	for k, v := range meta {
		switch t := v.(type) {
		case nil:
			out[k] = math.NaN()
		case map[string]interface{}:
			out[k] = sanitizeMeta(t)
		default:
			out[k] = v
		}
	}
	return out
}
