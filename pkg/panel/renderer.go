package panel

import (
	"fmt"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
)

var (
	gridColor    = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	axisColor    = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	readoutColor = color.RGBA{R: 230, G: 230, B: 230, A: 255}
	powerColor   = color.RGBA{R: 255, G: 165, B: 0, A: 255} // Orange
)

// meterRenderer renders the meter widget.
type meterRenderer struct {
	meter *MeterWidget

	bg      *canvas.Rectangle
	objects []fyne.CanvasObject

	lastSize fyne.Size
}

// MinSize returns the minimum size of the widget.
func (r *meterRenderer) MinSize() fyne.Size {
	return fyne.NewSize(320, 280)
}

// Layout arranges the widget components.
func (r *meterRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		r.meter.BaseWidget.Refresh()
	}
}

// Refresh rebuilds the canvas objects from the widget data.
func (r *meterRenderer) Refresh() {
	r.meter.mu.RLock()
	readout := r.meter.readout
	points := r.meter.display
	yMin := r.meter.yMin
	yMax := r.meter.yMax
	r.meter.mu.RUnlock()

	size := r.meter.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	r.objects = []fyne.CanvasObject{r.bg}

	// Readout occupies the top rows, the trend fills the rest.
	const (
		rowHeight    = float32(32)
		marginLeft   = float32(60)
		marginRight  = float32(20)
		marginBottom = float32(20)
	)
	readoutHeight := rowHeight * 3
	r.drawReadout(size.Width, rowHeight, readout)

	plotX := marginLeft
	plotY := readoutHeight + 10
	plotWidth := size.Width - marginLeft - marginRight
	plotHeight := size.Height - plotY - marginBottom
	if plotWidth <= 0 || plotHeight <= 0 {
		return
	}

	r.drawGrid(plotX, plotY, plotWidth, plotHeight, yMin, yMax)
	if len(points) > 1 {
		r.drawPowerLine(plotX, plotY, plotWidth, plotHeight, points, yMin, yMax)
	}
}

// drawReadout lays the cells out two per row.
func (r *meterRenderer) drawReadout(width, rowHeight float32, readout Readout) {
	for i, cell := range readout.Cells() {
		text := canvas.NewText(cell, readoutColor)
		text.TextSize = 20
		text.TextStyle = fyne.TextStyle{Monospace: true}
		text.Move(fyne.NewPos(8+float32(i%2)*width/2, float32(i/2)*rowHeight+4))
		r.objects = append(r.objects, text)
	}
}

// drawGrid draws horizontal power lines with labels.
func (r *meterRenderer) drawGrid(plotX, plotY, plotWidth, plotHeight float32, yMin, yMax float64) {
	const numHLines = 4
	for i := range numHLines + 1 {
		y := plotY + float32(i)*plotHeight/numHLines
		line := canvas.NewLine(gridColor)
		line.Position1 = fyne.NewPos(plotX, y)
		line.Position2 = fyne.NewPos(plotX+plotWidth, y)
		line.StrokeWidth = 1
		r.objects = append(r.objects, line)

		value := yMax - float64(i)*(yMax-yMin)/numHLines
		text := canvas.NewText(fmt.Sprintf("%.0fW", value), axisColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(plotX-5, y-6))
		r.objects = append(r.objects, text)
	}
}

// drawPowerLine draws active power per window, oldest on the left.
func (r *meterRenderer) drawPowerLine(plotX, plotY, plotWidth, plotHeight float32, points []Point, yMin, yMax float64) {
	span := yMax - yMin
	if span == 0 {
		span = 1
	}
	step := plotWidth / float32(len(points)-1)

	prev := fyne.NewPos(plotX, plotY+plotHeight-float32((points[0].Power-yMin)/span)*plotHeight)
	for i := 1; i < len(points); i++ {
		cur := fyne.NewPos(plotX+float32(i)*step, plotY+plotHeight-float32((points[i].Power-yMin)/span)*plotHeight)
		line := canvas.NewLine(powerColor)
		line.Position1 = prev
		line.Position2 = cur
		line.StrokeWidth = 1.5
		r.objects = append(r.objects, line)
		prev = cur
	}
}

// Objects returns all canvas objects for rendering.
func (r *meterRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *meterRenderer) Destroy() {}
