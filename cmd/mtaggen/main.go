// Command mtaggen writes synthetic MTAG files for exercising the
// deserializer.  It emits a header and multiples of one buffer type; for
// files mixing several devices, drive the gen package from a program
// instead.
package main

import (
	"flag"
	"log"
	"strings"

	"github.com/biologging/mtag/gen"
)

func main() {
	var (
		id           = flag.Int("id", 1, "the ID of the buffer to add to the file")
		val          = flag.Int64("val", 1, "the value to write to all of the channels")
		interval     = flag.Uint("time", 1000, "the time in between each buffer write, microseconds")
		dataFormat   = flag.String("format", "H", "data format string")
		bufferSize   = flag.Int("size", 8192, "size of each data buffer in bytes")
		headerFormat = flag.String("header", "BTX", "the format of the buffer header")
		split        = flag.Bool("split-channel", false, "split the named channels into separate outputs")
		output       = flag.String("o", "test_output.bin", "output file for the data")
		bufferName   = flag.String("device", "device", "the name of the device being written")
		numBuffers   = flag.Int("n", 1, "number of buffers to write")
		name         = flag.String("name", "Lono", "name of the animal")
		species      = flag.String("species", "Tursiops truncatus", "animal species")
		date         = flag.String("date", "1995/10/26 14:15:00", "experiment time")
		channels     = flag.String("channels", "ch1", "comma-separated name of each data channel")
	)
	flag.Parse()

	f := gen.File{
		Path: *output,
		Metadata: map[string]interface{}{
			"name":    *name,
			"species": *species,
			"date":    *date,
		},
		Devices: []gen.Device{{
			Name:         *bufferName,
			ID:           *id,
			Time:         uint32(*interval),
			Header:       *headerFormat,
			Data:         *dataFormat,
			BufferSize:   *bufferSize,
			Value:        *val,
			SplitChannel: *split,
			NumBuffers:   *numBuffers,
			ChannelNames: strings.Split(*channels, ","),
		}},
	}
	if err := f.Write(); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %s", *output)
}
