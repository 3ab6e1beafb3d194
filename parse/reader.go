package parse

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
)

// FileReader is a sequential byte source over an MTAG file with seek and
// tell, plus a running bytes-read counter that advances only with Read
// and ReadLine.  The counter feeds progress reporting and is independent
// of the seek position.
type FileReader struct {
	name      string
	size      int64
	bytesRead int64
	savedLoc  int64
	f         *os.File

	// progress, when set, observes every counted read
	progress func(n int64)
}

// NewFileReader returns a reader for the named file.  The file is not
// touched until Open.
func NewFileReader(name string) *FileReader {
	return &FileReader{name: name}
}

// SetProgress installs a callback invoked with the byte count of every
// counted read
func (r *FileReader) SetProgress(fn func(n int64)) {
	r.progress = fn
}

// Open opens the file and records its size
func (r *FileReader) Open() error {
	f, err := os.Open(r.name)
	if err != nil {
		return errors.Wrap(err, "parse: opening input")
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return errors.Wrap(err, "parse: sizing input")
	}
	r.f = f
	r.size = fi.Size()
	return nil
}

// Close closes the underlying file
func (r *FileReader) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

// Size returns the file size in bytes
func (r *FileReader) Size() int64 {
	return r.size
}

// BytesRead returns the running count of bytes consumed by Read and
// ReadLine
func (r *FileReader) BytesRead() int64 {
	return r.bytesRead
}

func (r *FileReader) advance(n int64) {
	r.bytesRead += n
	if r.progress != nil {
		r.progress(n)
	}
}

// Read returns exactly n bytes, or ErrShortRead when the file ends first
func (r *FileReader) Read(n int) ([]byte, error) {
	buf := make([]byte, n)
	m, err := io.ReadFull(r.f, buf)
	r.advance(int64(m))
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			off, _ := r.Tell()
			return nil, errors.Wrapf(ErrShortRead, "wanted %d bytes, got %d at offset %d", n, m, off)
		}
		return nil, errors.Wrap(err, "parse: read")
	}
	return buf, nil
}

// ReadLine reads through the next 0x0A, terminator included.  At end of
// file the remaining bytes are returned without a terminator.
func (r *FileReader) ReadLine() ([]byte, error) {
	var line []byte
	buf := make([]byte, 512)
	for {
		n, err := r.f.Read(buf)
		if n > 0 {
			if i := bytes.IndexByte(buf[:n], '\n'); i >= 0 {
				line = append(line, buf[:i+1]...)
				// give back what was read past the terminator
				if _, serr := r.f.Seek(int64(i+1-n), io.SeekCurrent); serr != nil {
					return nil, errors.Wrap(serr, "parse: rewinding past header line")
				}
				r.advance(int64(len(line)))
				return line, nil
			}
			line = append(line, buf[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				r.advance(int64(len(line)))
				return line, nil
			}
			return nil, errors.Wrap(err, "parse: readline")
		}
	}
}

// Tell returns the current offset from the start of the file
func (r *FileReader) Tell() (int64, error) {
	return r.f.Seek(0, io.SeekCurrent)
}

// Seek moves the read position; whence is io.SeekStart, io.SeekCurrent
// or io.SeekEnd
func (r *FileReader) Seek(offset int64, whence int) error {
	_, err := r.f.Seek(offset, whence)
	return err
}

// SaveCurrentLoc bookmarks the current offset for a later Restore
func (r *FileReader) SaveCurrentLoc() error {
	loc, err := r.Tell()
	if err != nil {
		return err
	}
	r.savedLoc = loc
	return nil
}

// Restore seeks back to the bookmarked offset
func (r *FileReader) Restore() error {
	return r.Seek(r.savedLoc, io.SeekStart)
}
