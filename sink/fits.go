package sink

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/astrogo/fitsio"
	"github.com/pkg/errors"
)

// FITS is a Sink writing one binary-table HDU per device into a FITS
// archive: a time column in seconds and a data column holding one vector
// of channels per row.  Columns accumulate in memory with the usual
// doubling growth and are flushed to disk on Finalize, so an aborted
// parse that still finalizes produces a consistent, truncated archive.
type FITS struct {
	*Memory
	path string
}

// NewFITS returns a sink that will write the named FITS file on Finalize
func NewFITS(path string) *FITS {
	return &FITS{Memory: NewMemory(), path: path}
}

// tableRow is the FITS view of one sample
type tableRow struct {
	Time float64   `fits:"time"`
	Data []float64 `fits:"data"`
}

// Finalize implements Sink: truncate the in-memory columns and write the
// archive
func (f *FITS) Finalize() error {
	if err := f.Memory.Finalize(); err != nil {
		return err
	}
	fid, err := os.Create(f.path)
	if err != nil {
		return errors.Wrap(err, "sink: creating archive")
	}
	defer fid.Close()

	fits, err := fitsio.Create(fid)
	if err != nil {
		return errors.Wrap(err, "sink: opening FITS stream")
	}
	defer fits.Close()

	phdu, err := fitsio.NewPrimaryHDU(nil)
	if err != nil {
		return errors.Wrap(err, "sink: primary HDU")
	}
	defer phdu.Close()
	if len(f.Meta) > 0 {
		if err = phdu.Header().Append(metaCards("", f.Meta)...); err != nil {
			return errors.Wrap(err, "sink: metadata cards")
		}
	}
	if err = fits.Write(phdu); err != nil {
		return errors.Wrap(err, "sink: writing primary HDU")
	}

	devices := f.Devices()
	sort.Strings(devices)
	for _, device := range devices {
		if err = f.writeTable(fits, device); err != nil {
			return err
		}
	}
	return nil
}

func (f *FITS) writeTable(fits *fitsio.File, device string) error {
	col := f.cols[device]
	tbl, err := fitsio.NewTable(device, []fitsio.Column{
		{Name: "time", Format: "D", Unit: "s"},
		{Name: "data", Format: fmt.Sprintf("%dD", col.channels)},
	}, fitsio.BINARY_TBL)
	if err != nil {
		return errors.Wrapf(err, "sink: table for %q", device)
	}
	defer tbl.Close()

	for i := 0; i < col.ind; i++ {
		row := tableRow{Time: col.time[i], Data: col.data[i]}
		if err = tbl.Write(&row); err != nil {
			return errors.Wrapf(err, "sink: row %d of %q", i, device)
		}
	}
	if err = fits.Write(tbl); err != nil {
		return errors.Wrapf(err, "sink: writing table %q", device)
	}
	return nil
}

// metaCards flattens a metadata tree into header cards with dotted key
// paths.  Card names are limited to eight characters in the format.
func metaCards(prefix string, meta map[string]interface{}) []fitsio.Card {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var cards []fitsio.Card
	for _, k := range keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		switch v := meta[k].(type) {
		case map[string]interface{}:
			cards = append(cards, metaCards(path, v)...)
		default:
			name := strings.ToUpper(path)
			if len(name) > 8 {
				name = name[:8]
			}
			cards = append(cards, fitsio.Card{Name: name, Value: v, Comment: path})
		}
	}
	return cards
}
