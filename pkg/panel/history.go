package panel

import "github.com/itohio/goemon/pkg/meter"

// Point is one window on the power trend.
type Point struct {
	Window  uint64
	Power   float64
	Voltage float64
}

// History keeps the most recent points in a ring.
type History struct {
	points []Point
	next   int
	full   bool
}

// NewHistory creates a ring holding up to size points.
func NewHistory(size int) *History {
	if size <= 0 {
		size = 1
	}
	return &History{points: make([]Point, size)}
}

// Add appends a snapshot, evicting the oldest point when full.
func (h *History) Add(s meter.Snapshot) {
	h.points[h.next] = Point{
		Window:  s.Window,
		Power:   float64(s.ActivePower),
		Voltage: float64(s.VRMS),
	}
	h.next++
	if h.next == len(h.points) {
		h.next = 0
		h.full = true
	}
}

// Len returns the number of stored points.
func (h *History) Len() int {
	if h.full {
		return len(h.points)
	}
	return h.next
}

// Points copies the stored points, oldest first, into dst.
// dst is reused when it has enough capacity.
func (h *History) Points(dst []Point) []Point {
	dst = dst[:0]
	if h.full {
		dst = append(dst, h.points[h.next:]...)
	}
	return append(dst, h.points[:h.next]...)
}

// Downsample decimates points to at most maxPoints.
// Destination-based: reuses dst if it has sufficient capacity.
func Downsample(dst []Point, points []Point, maxPoints int) []Point {
	dst = dst[:0]
	if len(points) <= maxPoints || maxPoints <= 0 {
		return append(dst, points...)
	}

	step := float64(len(points)) / float64(maxPoints)
	for i := range maxPoints {
		idx := int(float64(i) * step)
		if idx < len(points) {
			dst = append(dst, points[idx])
		}
	}
	return dst
}
