package meter

import (
	"math"

	"github.com/itohio/goemon/pkg/acquisition"
	"github.com/itohio/goemon/pkg/config"
)

// mains generates n pairs of a cosine voltage and a current lagging by
// phaseDeg, both expressed in raw counts through the calibration.
func mains(n int, cal config.CalibrationConfig, rate int, vRMS, iRMS, freq, phaseDeg float64) []acquisition.RawSamplePair {
	vAmp := vRMS * math.Sqrt2 / float64(cal.CalV)
	iAmp := iRMS * math.Sqrt2 / float64(cal.CalI) * float64(cal.PowerSign)
	phase := phaseDeg * math.Pi / 180

	pairs := make([]acquisition.RawSamplePair, n)
	for k := range pairs {
		x := 2 * math.Pi * freq * float64(k) / float64(rate)
		pairs[k] = acquisition.RawSamplePair{
			Voltage: raw(float64(cal.VOffset) + vAmp*math.Cos(x)),
			Current: raw(float64(cal.IOffset) + iAmp*math.Cos(x-phase)),
		}
	}
	return pairs
}

func raw(x float64) uint16 {
	return uint16(math.Round(math.Max(0, math.Min(acquisition.MaxRaw, x))))
}

// constant returns n identical pairs.
func constant(n int, v, i int) []acquisition.RawSamplePair {
	pairs := make([]acquisition.RawSamplePair, n)
	for k := range pairs {
		pairs[k] = acquisition.RawSamplePair{Voltage: uint16(v), Current: uint16(i)}
	}
	return pairs
}

// feed runs pairs through acc in halves of size half and collects snapshots.
func feed(acc *Accumulator, pairs []acquisition.RawSamplePair, half int) []Snapshot {
	var out []Snapshot
	for start := 0; start < len(pairs); start += half {
		end := min(start+half, len(pairs))
		if s, ok := acc.ProcessHalf(pairs[start:end]); ok {
			out = append(out, s)
		}
	}
	return out
}

// fakeEvents is a scripted Events implementation.
type fakeEvents struct {
	halves [2][]acquisition.RawSamplePair
	filled [2]bool
	reads  []acquisition.Half
	onRead func(h acquisition.Half)
}

func (f *fakeEvents) Filled(h acquisition.Half) bool { return f.filled[h] }
func (f *fakeEvents) Clear(h acquisition.Half)       { f.filled[h] = false }

func (f *fakeEvents) Samples(h acquisition.Half) []acquisition.RawSamplePair {
	f.reads = append(f.reads, h)
	if f.onRead != nil {
		f.onRead(h)
	}
	return f.halves[h]
}
