// Command mtag deserializes MTAG logger files into FITS archives.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/theckman/yacspin"
	"golang.org/x/time/rate"

	yml "github.com/go-yaml/yaml"

	"github.com/biologging/mtag/parse"
	"github.com/biologging/mtag/sink"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "dev"

	// ConfigFileName is what it sounds like
	ConfigFileName = "mtag.yml"
	k              = koanf.New(".")
)

// Config holds the tool's tunables
type Config struct {
	// Input is the MTAG file to deserialize
	Input string `koanf:"input"`

	// Output is the FITS archive to write
	Output string `koanf:"output"`

	// HeaderFile, when set, replaces the in-file header for recovery
	HeaderFile string `koanf:"headerfile"`

	// NumToPop and PopBoundary tune the accumulator draining
	NumToPop    int `koanf:"numtopop"`
	PopBoundary int `koanf:"popboundary"`

	// Progress toggles the spinner
	Progress bool `koanf:"progress"`
}

func defaults() Config {
	return Config{
		Output:      "output.fits",
		NumToPop:    parse.DefaultNumToPop,
		PopBoundary: parse.DefaultBufferPopBoundary,
		Progress:    true,
	}
}

func setupconfig() {
	k.Load(structs.Provider(defaults(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `mtag deserializes the binary files written by animal tag data loggers
into FITS archives with one table per device: a time column in seconds
and a data column with one vector of channels per sample.

Usage:
	mtag <command> [input] [output]

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `mtag is amenable to configuration via its .yml file.  For a primer on YAML, see
https://yaml.org/start.html

When no configuration is provided, the defaults are used.  Keys are not case-sensitive.
The command mkconf generates the configuration file with the default values.
The input and output paths may also be given as arguments to run, which
take precedence over the configuration file.`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("mtag version %v\n", Version)
}

func run(args []string) {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	if len(args) > 0 {
		c.Input = args[0]
	}
	if len(args) > 1 {
		c.Output = args[1]
	}
	if c.Input == "" {
		log.Fatal("no input file; pass one to run or set input in the config")
	}

	p := parse.NewFileParser(c.Input, sink.NewFITS(c.Output))
	p.NumToPop = c.NumToPop
	p.BufferPopBoundary = c.PopBoundary

	var spinner *yacspin.Spinner
	if c.Progress {
		spinner, err = yacspin.New(yacspin.Config{
			Frequency:       100 * time.Millisecond,
			CharSet:         yacspin.CharSets[59],
			Suffix:          " " + c.Input,
			SuffixAutoColon: true,
			Message:         "parsing",
			StopCharacter:   "✓",
			StopColors:      []string{"fgGreen"},
		})
		if err != nil {
			log.Fatal(err)
		}
		limiter := rate.NewLimiter(rate.Every(100*time.Millisecond), 1)
		p.File.SetProgress(func(int64) {
			if limiter.Allow() {
				spinner.Message(fmt.Sprintf("%s of %s",
					humanize.Bytes(uint64(p.File.BytesRead())),
					humanize.Bytes(uint64(p.File.Size()))))
			}
		})
		spinner.Start()
	}

	start := time.Now()
	err = p.Parse(c.HeaderFile)
	if spinner != nil {
		if err != nil {
			spinner.StopFail()
		} else {
			spinner.Stop()
		}
	}
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %s: %d buffers across %d devices in %v",
		c.Output, p.TotBuffers, len(p.Decoder), time.Since(start).Round(time.Millisecond))
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd := strings.ToLower(args[1])
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run(args[2:])
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
