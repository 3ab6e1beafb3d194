package format_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/biologging/mtag/format"
)

func ExamplePacketSize() {
	size, _ := format.PacketSize("BTx")
	fmt.Println(size)
	// Output: 6
}

func ExampleChannelCount() {
	data, time, _ := format.ChannelCount("THH")
	fmt.Println(data, time)
	// Output: 2 1
}

func TestPacketSize(t *testing.T) {
	cases := []struct {
		format string
		size   int
	}{
		{"B", 1},
		{"H", 2},
		{"U", 3},
		{"I", 4},
		{"f", 4},
		{"T", 4},
		{"BTx", 6},
		{"HB", 3},
		{"uhX", 6},
		{"", 0},
	}
	for _, c := range cases {
		size, err := format.PacketSize(c.format)
		if err != nil {
			t.Fatalf("PacketSize(%q) errored: %v", c.format, err)
		}
		if size != c.size {
			t.Errorf("PacketSize(%q) = %d, want %d", c.format, size, c.size)
		}
	}
}

func TestPacketSizeUnknownTag(t *testing.T) {
	_, err := format.PacketSize("HZ")
	if !errors.Is(err, format.ErrUnknownTag) {
		t.Errorf("expected ErrUnknownTag, got %v", err)
	}
}

func TestChannelCount(t *testing.T) {
	cases := []struct {
		format string
		data   int
		time   int
	}{
		{"H", 1, 0},
		{"HB", 2, 0},
		{"TH", 1, 1},
		{"BTx", 2, 1},
	}
	for _, c := range cases {
		data, time, err := format.ChannelCount(c.format)
		if err != nil {
			t.Fatalf("ChannelCount(%q) errored: %v", c.format, err)
		}
		if data != c.data || time != c.time {
			t.Errorf("ChannelCount(%q) = (%d, %d), want (%d, %d)", c.format, data, time, c.data, c.time)
		}
	}
}

func TestChannelCountMultipleTime(t *testing.T) {
	_, _, err := format.ChannelCount("TT")
	if !errors.Is(err, format.ErrMultipleTime) {
		t.Errorf("expected ErrMultipleTime, got %v", err)
	}
}

func TestElementTypes(t *testing.T) {
	types, err := format.ElementTypes("BbHhUuIiLlfXxT")
	if err != nil {
		t.Fatal(err)
	}
	expected := []format.Type{
		format.Int8, format.Uint8,
		format.Int16, format.Uint16,
		format.Int32, format.Uint32,
		format.Int32, format.Uint32,
		format.Int32, format.Uint32,
		format.Float32,
		format.Ignored, format.Ignored,
		format.Time,
	}
	for i := range expected {
		if types[i] != expected[i] {
			t.Errorf("tag %d: got %v, want %v", i, types[i], expected[i])
		}
	}
}

func TestHasTime(t *testing.T) {
	if !format.HasTime("BTx") {
		t.Error("expected BTx to have time")
	}
	if format.HasTime("HB") {
		t.Error("expected HB to not have time")
	}
}
