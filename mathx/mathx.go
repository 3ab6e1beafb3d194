// Package mathx provides the small numeric kernels used when
// reconstructing time axes from logger data.
package mathx

import "math"

// Round rounds a float to the nearest "unit" (0.1 for tenth, 0.01 for hundredth, and so on).
func Round(x, unit float64) float64 {
	return math.Round(x/unit) * unit
}

// Linspace returns n evenly spaced values from start to stop, both
// endpoints included.  n < 2 returns []float64{start}.
func Linspace(start, stop float64, n int) []float64 {
	if n < 2 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := 0; i < n-1; i++ {
		out[i] = start + float64(i)*step
	}
	// the right endpoint is exact, not accumulated
	out[n-1] = stop
	return out
}

// Unwrap repairs a sequence of counter samples that overflowed at
// maxNumber, returning the adjusted sequence and the number of overflows.
//
// A rise of at least badFrac*maxNumber between neighbors marks samples
// written out of order around an overflow; the run following such a jump,
// through the next drop of at least badFrac*maxNumber, is pulled down by
// maxNumber first.  A jump with no following drop is pulled down through
// the end of the sequence only when the jump itself sits directly after
// such a drop; otherwise the run is left alone.  Remaining drops of at
// least badFrac*maxNumber are true overflows: everything after each one
// is raised by maxNumber.
//
// The intermediate values go negative, so the caller must hand in signed
// values even though the counter is unsigned on the wire.  Fewer than two
// samples are returned unchanged with zero overflows.
func Unwrap(values []int64, maxNumber int64, badFrac float64) ([]int64, int) {
	items := make([]int64, len(values))
	copy(items, values)
	if len(items) < 2 {
		return items, 0
	}
	threshold := int64(badFrac * float64(maxNumber))

	var posJumps []int
	for i := 0; i < len(items)-1; i++ {
		if items[i+1]-items[i] >= threshold {
			posJumps = append(posJumps, i)
		}
	}

	for _, idx := range posJumps {
		end := -1
		for e := idx + 1; e < len(items)-1; e++ {
			if items[e+1]-items[e] <= -threshold {
				end = e
				break
			}
		}
		switch {
		case end >= 0:
			for j := idx + 1; j <= end; j++ {
				items[j] -= maxNumber
			}
		case idx > 0 && items[idx]-items[idx-1] <= -threshold:
			// the jump closes an overflow at the tail of the sequence
			for j := idx + 1; j < len(items); j++ {
				items[j] -= maxNumber
			}
		}
	}

	var negJumps []int
	for i := 0; i < len(items)-1; i++ {
		if items[i+1]-items[i] <= -threshold {
			negJumps = append(negJumps, i)
		}
	}
	for _, idx := range negJumps {
		for j := idx + 1; j < len(items); j++ {
			items[j] += maxNumber
		}
	}
	return items, len(negJumps)
}
