package sink

import "github.com/biologging/mtag/accum"

// column is one device's pair of resizable append regions
type column struct {
	time []float64
	data [][]float64

	// size is the allocated length, ind the written length
	size int
	ind  int

	channels  int
	chunkHint int
}

// ensure grows the columns by doubling until need rows fit
func (c *column) ensure(need int) {
	if need <= c.size {
		return
	}
	newSize := c.size
	if newSize == 0 {
		newSize = need
	}
	for newSize < need {
		newSize *= 2
	}
	time := make([]float64, newSize)
	copy(time, c.time)
	c.time = time
	data := make([][]float64, newSize)
	copy(data, c.data)
	c.data = data
	c.size = newSize
}

func (c *column) append(chunk accum.Chunk) {
	n := chunk.Len()
	c.ensure(c.ind + n)
	copy(c.time[c.ind:], chunk.Time)
	copy(c.data[c.ind:], chunk.Data)
	c.ind += n
}

// truncate cuts the columns to the written length
func (c *column) truncate() {
	c.time = c.time[:c.ind]
	c.data = c.data[:c.ind]
	c.size = c.ind
}

// Memory is an in-memory Sink, used by tests and by front-ends that
// post-process columns in place
type Memory struct {
	cols map[string]*column

	// Meta is the mirrored file metadata after WriteMetadata, with JSON
	// null replaced by NaN
	Meta map[string]interface{}
}

// NewMemory returns an empty in-memory sink
func NewMemory() *Memory {
	return &Memory{cols: make(map[string]*column)}
}

// Preallocate implements Sink
func (m *Memory) Preallocate(device string, totalSamples, numChannels, chunkHint int) error {
	m.cols[device] = &column{
		time:      make([]float64, totalSamples),
		data:      make([][]float64, totalSamples),
		size:      totalSamples,
		channels:  numChannels,
		chunkHint: chunkHint,
	}
	return nil
}

// Append implements Sink
func (m *Memory) Append(device string, chunk accum.Chunk) error {
	col, ok := m.cols[device]
	if !ok {
		return ErrUnknownDevice
	}
	col.append(chunk)
	return nil
}

// WriteMetadata implements Sink
func (m *Memory) WriteMetadata(meta map[string]interface{}) error {
	m.Meta = sanitizeMeta(meta)
	return nil
}

// Finalize implements Sink
func (m *Memory) Finalize() error {
	for _, col := range m.cols {
		col.truncate()
	}
	return nil
}

// Devices returns the names of the pre-allocated devices
func (m *Memory) Devices() []string {
	names := make([]string, 0, len(m.cols))
	for name := range m.cols {
		names = append(names, name)
	}
	return names
}

// Time returns the device's written time column in seconds
func (m *Memory) Time(device string) []float64 {
	col, ok := m.cols[device]
	if !ok {
		return nil
	}
	return col.time[:col.ind]
}

// Data returns the device's written sample rows
func (m *Memory) Data(device string) [][]float64 {
	col, ok := m.cols[device]
	if !ok {
		return nil
	}
	return col.data[:col.ind]
}

// Channels returns the device's channel count
func (m *Memory) Channels(device string) int {
	col, ok := m.cols[device]
	if !ok {
		return 0
	}
	return col.channels
}
