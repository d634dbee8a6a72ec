package panel

import (
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/goemon/pkg/meter"
)

// DefaultHistory is the number of windows kept on the power trend.
const DefaultHistory = 600

// MeterWidget is a Fyne widget showing the latest readout above a trend of
// active power per window.
type MeterWidget struct {
	widget.BaseWidget

	// Data (protected by mu)
	mu      sync.RWMutex
	readout Readout
	history *History

	// Display buffers (reused for downsampling)
	points  []Point
	display []Point

	// Auto-scaling
	yMin, yMax float64

	maxDisplayPoints int
}

// New creates a MeterWidget keeping historyLen windows.
func New(historyLen int) *MeterWidget {
	if historyLen <= 0 {
		historyLen = DefaultHistory
	}
	w := &MeterWidget{
		readout:          NewReadout(meter.Snapshot{}),
		history:          NewHistory(historyLen),
		points:           make([]Point, 0, historyLen),
		display:          make([]Point, 0, 500),
		yMin:             0,
		yMax:             1,
		maxDisplayPoints: 500,
	}
	w.ExtendBaseWidget(w)
	return w
}

// Update shows a new snapshot. Must run on the Fyne main thread.
func (w *MeterWidget) Update(s meter.Snapshot) {
	w.mu.Lock()
	w.readout = NewReadout(s)
	w.history.Add(s)
	w.points = w.history.Points(w.points)
	w.display = Downsample(w.display, w.points, w.maxDisplayPoints)
	w.updateAutoScale()
	w.mu.Unlock()

	// Outside the lock: Refresh calls back into the renderer.
	w.Refresh()
}

// Follow updates the widget from every snapshot of m.
func (w *MeterWidget) Follow(m meter.EnergyMeter) {
	m.OnSnapshot(func(s meter.Snapshot) {
		fyne.Do(func() {
			w.Update(s)
		})
	})
}

// Readout returns the text currently displayed.
func (w *MeterWidget) Readout() Readout {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.readout
}

// updateAutoScale sets the Y range from the displayed points.
func (w *MeterWidget) updateAutoScale() {
	w.yMin = 0
	w.yMax = 1
	for _, p := range w.display {
		if p.Power > w.yMax {
			w.yMax = p.Power
		}
	}
	w.yMax *= 1.1
}

// CreateRenderer creates the widget renderer.
func (w *MeterWidget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &meterRenderer{
		meter:   w,
		bg:      bg,
		objects: []fyne.CanvasObject{bg},
	}
}
