// Package accum buffers the decoded output of one logger device and
// drains it in chunks with a dense, overflow-corrected time axis.
//
// Samples arrive one physical buffer at a time: a sub-header tuple with
// its anchor time, plus per-channel sample runs and, on some devices, a
// per-sample time run.  The queues are ring-buffer deques so that the
// only access pattern, consume-N-from-the-front, stays amortized O(1).
package accum

import (
	"errors"
	"fmt"

	"github.com/gammazero/deque"

	"github.com/biologging/mtag/mathx"
)

const (
	// MaxTime is the largest value of the 32-bit microsecond counter
	// before it overflows
	MaxTime = int64(1<<32 - 1)

	// MicrosecondsPerSecond converts the wire time base to seconds
	MicrosecondsPerSecond = 1e6

	// badFrac is the fraction of MaxTime a neighbor difference must reach
	// to count as an overflow artifact
	badFrac = 0.5
)

var (
	// ErrNoTimeSource is generated when a drain is requested but neither
	// sub-header times nor per-sample times are queued
	ErrNoTimeSource = errors.New("accum: no time source, neither sub-header nor per-sample time available")

	// ErrBufferCount is generated when the buffer count and the queued
	// sub-header time count disagree after an append
	ErrBufferCount = errors.New("accum: buffer count does not match queued sub-header times")

	// ErrChannelCount is generated when an append carries a different
	// number of data channels than the accumulator was built with
	ErrChannelCount = errors.New("accum: channel count mismatch")
)

// Chunk is one drained run of samples, ready for the columnar store.
// Time is in seconds; Data is row-major, one row per sample with one
// column per channel.
type Chunk struct {
	Time []float64
	Data [][]float64
}

// Len returns the number of samples in the chunk
func (c Chunk) Len() int {
	return len(c.Time)
}

// Buffer accumulates decoded buffers for a single device
type Buffer struct {
	headerData deque.Deque[[]float64]
	headerTime deque.Deque[int64]
	data       []deque.Deque[float64]
	time       deque.Deque[int64]

	// timeOffset is the accumulated wrap correction in microseconds
	timeOffset int64

	// lastTime is the last emitted microsecond sample, the left anchor of
	// the next interpolation window
	lastTime int64

	numBuffers  int
	popBoundary int
	chunkSize   int
}

// New returns a Buffer for a device with numChannels data channels.
// popBoundary is the buffer count at which Append starts returning true;
// chunkSize is the device's packets-per-buffer, carried as the store's
// chunking hint.
func New(numChannels, popBoundary, chunkSize int) *Buffer {
	return &Buffer{
		data:        make([]deque.Deque[float64], numChannels),
		popBoundary: popBoundary,
		chunkSize:   chunkSize,
	}
}

// NumBuffers returns the number of appended buffers not yet drained
func (b *Buffer) NumBuffers() int {
	return b.numBuffers
}

// ChunkSize returns the store chunking hint, the device's packets per buffer
func (b *Buffer) ChunkSize() int {
	return b.chunkSize
}

// Append pushes one buffer's decoded output.  headerData, data and times
// may be empty; hasHeaderTime marks whether headerTime carries a value.
// It reports whether the accumulator has reached its drain boundary.
//
// One call corresponds to exactly one physical buffer, which carries
// exactly one sub-header time; Append fails if that invariant breaks.
func (b *Buffer) Append(headerData []float64, headerTime int64, hasHeaderTime bool, data [][]float64, times []int64) (bool, error) {
	if len(headerData) > 0 {
		b.headerData.PushBack(headerData)
	}
	if hasHeaderTime {
		b.headerTime.PushBack(headerTime)
	}
	if len(times) > 0 {
		for _, t := range times {
			b.time.PushBack(t)
		}
	}
	if len(data) > 0 {
		if len(data) != len(b.data) {
			return false, fmt.Errorf("%w: got %d channels, have %d", ErrChannelCount, len(data), len(b.data))
		}
		for i, channel := range data {
			for _, v := range channel {
				b.data[i].PushBack(v)
			}
		}
	}
	b.numBuffers++
	if b.numBuffers != b.headerTime.Len() {
		return false, fmt.Errorf("%w: %d buffers, %d times", ErrBufferCount, b.numBuffers, b.headerTime.Len())
	}
	return b.numBuffers >= b.popBoundary, nil
}

// Pop drains nBuffers buffers' worth of samples into a Chunk.
//
// When only sub-header times are queued, the time axis is synthesized by
// linear interpolation between consecutive anchors, excluding the left
// endpoint of each window and including the right.  When per-sample
// times are queued they are used verbatim after unwrapping, and the
// sub-header times for the drained buffers are discarded so the queue
// stays bounded.  In both modes the times are corrected for 32-bit
// overflow and emitted in seconds.
func (b *Buffer) Pop(nBuffers, numPacketsPerBuffer, numChannels int) (Chunk, error) {
	lenData := nBuffers * numPacketsPerBuffer
	timeMicro := make([]float64, lenData)

	var overflows int
	switch {
	case b.headerTime.Len() > 0 && b.time.Len() == 0:
		anchors := make([]int64, 0, nBuffers+1)
		anchors = append(anchors, b.lastTime)
		for i := 0; i < nBuffers; i++ {
			anchors = append(anchors, b.headerTime.PopFront())
		}
		anchors, overflows = mathx.Unwrap(anchors, MaxTime, badFrac)
		// constant sampling rate inside each window: interpolate between
		// the anchors, left endpoint excluded, right included
		for i := 0; i < nBuffers; i++ {
			window := mathx.Linspace(float64(anchors[i]), float64(anchors[i+1]), numPacketsPerBuffer+1)
			copy(timeMicro[i*numPacketsPerBuffer:(i+1)*numPacketsPerBuffer], window[1:])
		}
		b.lastTime = anchors[nBuffers]
	case b.time.Len() > 0:
		pre := make([]int64, 0, lenData)
		for i := 0; i < lenData; i++ {
			pre = append(pre, b.timeOffset+b.time.PopFront())
		}
		var unwrapped []int64
		unwrapped, overflows = mathx.Unwrap(pre, MaxTime, badFrac)
		for i, t := range unwrapped {
			timeMicro[i] = float64(t)
		}
		// the sub-header times are unused in this mode, but must be
		// consumed to bound the queue
		for i := 0; i < nBuffers && b.headerTime.Len() > 0; i++ {
			b.headerTime.PopFront()
		}
	default:
		return Chunk{}, ErrNoTimeSource
	}

	// stale sub-header data is not forwarded; drop it to bound the queue
	for i := 0; i < nBuffers && b.headerData.Len() > 0; i++ {
		b.headerData.PopFront()
	}

	b.timeOffset += int64(overflows) * MaxTime

	data := make([][]float64, lenData)
	for r := range data {
		data[r] = make([]float64, numChannels)
	}
	for k := 0; k < numChannels; k++ {
		for r := 0; r < lenData; r++ {
			data[r][k] = b.data[k].PopFront()
		}
	}
	b.numBuffers -= nBuffers

	for i := range timeMicro {
		timeMicro[i] /= MicrosecondsPerSecond
	}
	return Chunk{Time: timeMicro, Data: data}, nil
}
