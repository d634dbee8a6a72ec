package acquisition

import (
	"errors"
	"fmt"
)

// ErrStreamEnded means a source stopped producing without being closed.
var ErrStreamEnded = errors.New("sample stream ended")

// MaxRaw is the largest reading of the 12-bit converter.
const MaxRaw = 4095

// RawSamplePair is one acquisition instant: voltage and current channel
// readings before offset correction.
type RawSamplePair struct {
	Voltage uint16
	Current uint16
}

// Half identifies one of the two halves of the circular sample buffer.
type Half int

const (
	First Half = iota
	Second
)

// Opposite returns the other half.
func (h Half) Opposite() Half {
	if h == First {
		return Second
	}
	return First
}

func (h Half) String() string {
	switch h {
	case First:
		return "first"
	case Second:
		return "second"
	default:
		return fmt.Sprintf("half(%d)", int(h))
	}
}

// Events is the consumer-side view of a double-buffered acquisition.
//
// A half may only be read through Samples after Filled reported it, and the
// read must finish before the producer wraps back into it.
type Events interface {
	Filled(h Half) bool
	Clear(h Half)
	Samples(h Half) []RawSamplePair
}

// Source is a running producer (real or simulated) feeding an Events buffer.
//
// Done is closed when the producer stops; Err then tells whether it stopped
// on its own (wrapping ErrStreamEnded) or was closed (nil).
type Source interface {
	Connect() error
	Close() error
	IsConnected() bool
	Events() Events
	Done() <-chan struct{}
	Err() error
}

// PollHalfFilled returns the first asserted half in buffer order.
func PollHalfFilled(ev Events) (Half, bool) {
	if ev.Filled(First) {
		return First, true
	}
	if ev.Filled(Second) {
		return Second, true
	}
	return First, false
}

var (
	_ Source = (*Simulator)(nil)
	_ Events = (*DoubleBuffer)(nil)
)
