package view

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"github.com/itohio/padscan/pkg/board"
)

const (
	rowHeight   = float32(18)
	rowGap      = float32(2)
	labelWidth  = float32(260)
	marginLeft  = float32(8)
	marginRight = float32(8)
	marginTop   = float32(24)
)

// barsRenderer renders the bars widget.
type barsRenderer struct {
	bars *BarsWidget

	bg     *canvas.Rectangle
	status *canvas.Text

	tracks  []*canvas.Rectangle
	spreads []*canvas.Rectangle
	fills   []*canvas.Rectangle
	labels  []*canvas.Text

	objects []fyne.CanvasObject
}

// MinSize returns the minimum size of the widget.
func (r *barsRenderer) MinSize() fyne.Size {
	r.bars.mu.RLock()
	n := len(r.bars.entries)
	r.bars.mu.RUnlock()
	return fyne.NewSize(labelWidth+200, marginTop+float32(n)*(rowHeight+rowGap))
}

// Layout arranges the widget components.
func (r *barsRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.status.Move(fyne.NewPos(marginLeft, 4))
	r.place(size)
}

// Refresh rebuilds rows to match the current entries.
func (r *barsRenderer) Refresh() {
	r.bars.mu.RLock()
	entries := r.bars.entries
	status := r.bars.status
	r.bars.mu.RUnlock()

	r.status.Text = status
	r.ensureRows(len(entries))

	now := r.bars.now()
	for i, e := range entries {
		r.labels[i].Text = rowText(e)
		r.fills[i].FillColor = rowColor(e, now)
	}

	r.place(r.bars.Size())
	canvas.Refresh(r.bars)
}

// Objects returns the objects to render.
func (r *barsRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *barsRenderer) Destroy() {}

func (r *barsRenderer) ensureRows(n int) {
	if len(r.fills) == n {
		return
	}

	r.tracks = r.tracks[:0]
	r.spreads = r.spreads[:0]
	r.fills = r.fills[:0]
	r.labels = r.labels[:0]
	r.objects = []fyne.CanvasObject{r.bg, r.status}

	for range n {
		track := canvas.NewRectangle(colorTrack)
		spread := canvas.NewRectangle(colorSpread)
		fill := canvas.NewRectangle(colorBar)
		label := canvas.NewText("", colorText)
		label.TextSize = 12
		label.TextStyle.Monospace = true

		r.tracks = append(r.tracks, track)
		r.spreads = append(r.spreads, spread)
		r.fills = append(r.fills, fill)
		r.labels = append(r.labels, label)
		r.objects = append(r.objects, track, spread, fill, label)
	}
}

// place positions every row for the given widget size.
func (r *barsRenderer) place(size fyne.Size) {
	r.bars.mu.RLock()
	entries := r.bars.entries
	limit := r.bars.max
	r.bars.mu.RUnlock()

	if size.Width == 0 || len(entries) != len(r.fills) {
		return
	}

	barX := marginLeft + labelWidth
	barWidth := size.Width - barX - marginRight
	if barWidth < 0 {
		barWidth = 0
	}

	for i, e := range entries {
		y := marginTop + float32(i)*(rowHeight+rowGap)

		r.labels[i].Move(fyne.NewPos(marginLeft, y))

		r.tracks[i].Move(fyne.NewPos(barX, y))
		r.tracks[i].Resize(fyne.NewSize(barWidth, rowHeight))

		level := e.Level(limit)
		r.fills[i].Move(fyne.NewPos(barX, y+rowHeight/4))
		r.fills[i].Resize(fyne.NewSize(barWidth*level, rowHeight/2))

		lo := board.Entry{Raw: e.Min}.Level(limit)
		hi := board.Entry{Raw: e.Max}.Level(limit)
		if e.Count == 0 {
			lo, hi = 0, 0
		}
		r.spreads[i].Move(fyne.NewPos(barX+barWidth*lo, y))
		r.spreads[i].Resize(fyne.NewSize(barWidth*(hi-lo), rowHeight))
	}
}
