package parse_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/biologging/mtag/parse"
)

func writeTemp(t *testing.T, contents []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reader.bin")
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadLineAndBytesRead(t *testing.T) {
	r := parse.NewFileReader(writeTemp(t, []byte("hello\nworld")))
	if err := r.Open(); err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	line, err := r.ReadLine()
	if err != nil {
		t.Fatal(err)
	}
	if string(line) != "hello\n" {
		t.Errorf("line = %q, want %q", line, "hello\n")
	}
	if r.BytesRead() != 6 {
		t.Errorf("BytesRead = %d, want 6", r.BytesRead())
	}

	rest, err := r.Read(5)
	if err != nil {
		t.Fatal(err)
	}
	if string(rest) != "world" {
		t.Errorf("rest = %q, want %q", rest, "world")
	}
	if r.BytesRead() != 11 {
		t.Errorf("BytesRead = %d, want 11", r.BytesRead())
	}
}

func TestReadLineWithoutTerminator(t *testing.T) {
	r := parse.NewFileReader(writeTemp(t, []byte("no newline")))
	if err := r.Open(); err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	line, err := r.ReadLine()
	if err != nil {
		t.Fatal(err)
	}
	if string(line) != "no newline" {
		t.Errorf("line = %q", line)
	}
}

func TestSeekTellRoundTrip(t *testing.T) {
	r := parse.NewFileReader(writeTemp(t, []byte("0123456789")))
	if err := r.Open(); err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if _, err := r.Read(3); err != nil {
		t.Fatal(err)
	}
	if err := r.SaveCurrentLoc(); err != nil {
		t.Fatal(err)
	}
	if err := r.Seek(4, io.SeekCurrent); err != nil {
		t.Fatal(err)
	}
	loc, err := r.Tell()
	if err != nil {
		t.Fatal(err)
	}
	if loc != 7 {
		t.Errorf("Tell = %d, want 7", loc)
	}
	if err := r.Restore(); err != nil {
		t.Fatal(err)
	}
	loc, _ = r.Tell()
	if loc != 3 {
		t.Errorf("restored Tell = %d, want 3", loc)
	}

	// seeks do not feed the read counter
	if r.BytesRead() != 3 {
		t.Errorf("BytesRead = %d, want 3", r.BytesRead())
	}
}

func TestReadShort(t *testing.T) {
	r := parse.NewFileReader(writeTemp(t, []byte("ab")))
	if err := r.Open(); err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	_, err := r.Read(5)
	if !errors.Is(err, parse.ErrShortRead) {
		t.Errorf("expected ErrShortRead, got %v", err)
	}
}

func TestProgressCallback(t *testing.T) {
	r := parse.NewFileReader(writeTemp(t, []byte("abcdef\n")))
	var seen int64
	r.SetProgress(func(n int64) { seen += n })
	if err := r.Open(); err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if _, err := r.ReadLine(); err != nil {
		t.Fatal(err)
	}
	if seen != 7 {
		t.Errorf("progress saw %d bytes, want 7", seen)
	}
}
