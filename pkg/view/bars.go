// Package view renders the board as one horizontal bar per conductor.
package view

import (
	"fmt"
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/padscan/pkg/board"
	"github.com/itohio/padscan/pkg/frontend"
)

// StaleAfter marks an entry stale when it has not been updated for this long.
const StaleAfter = 5 * time.Second

var (
	colorBackground = color.RGBA{R: 20, G: 20, B: 20, A: 255}
	colorTrack      = color.RGBA{R: 45, G: 45, B: 45, A: 255}
	colorBar        = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	colorSpread     = color.RGBA{R: 100, G: 150, B: 255, A: 120}
	colorFailed     = color.RGBA{R: 220, G: 50, B: 50, A: 255}
	colorStale      = color.RGBA{R: 110, G: 110, B: 110, A: 255}
	colorText       = color.RGBA{R: 200, G: 200, B: 200, A: 255}
)

// BarsWidget is a Fyne widget showing the latest reading of every conductor.
type BarsWidget struct {
	widget.BaseWidget

	mu      sync.RWMutex
	entries []board.Entry
	max     frontend.RawSample
	status  string
	now     func() time.Time
}

// New creates a BarsWidget for samples in [0, limit]. A zero limit means 12-bit.
func New(limit frontend.RawSample) *BarsWidget {
	if limit == 0 {
		limit = 1<<frontend.DefaultResolution - 1
	}
	b := &BarsWidget{max: limit, now: time.Now}
	b.ExtendBaseWidget(b)
	return b
}

// UpdateData replaces the displayed entries.
// This should be called on the main thread using fyne.Do().
func (b *BarsWidget) UpdateData(entries []board.Entry, status string) {
	b.mu.Lock()
	b.entries = entries
	b.status = status
	b.mu.Unlock()

	b.Refresh()
}

// CreateRenderer creates the widget renderer.
func (b *BarsWidget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(colorBackground)
	status := canvas.NewText("", colorText)
	status.TextSize = 12
	return &barsRenderer{
		bars:    b,
		bg:      bg,
		status:  status,
		objects: []fyne.CanvasObject{bg, status},
	}
}

// rowColor picks the bar color for an entry.
func rowColor(e board.Entry, now time.Time) color.Color {
	switch {
	case e.Failures > 0 && e.Count == 0:
		return colorFailed
	case now.Sub(e.Updated) > StaleAfter:
		return colorStale
	default:
		return colorBar
	}
}

// rowText is the caption drawn next to a bar.
func rowText(e board.Entry) string {
	s := fmt.Sprintf("%2d %-9s %4d %5.3fV  Δ%d", e.Input, e.Label, e.Raw, e.Volts, e.Spread())
	if e.Failures > 0 {
		s += fmt.Sprintf("  ERR×%d", e.Failures)
	}
	return s
}
