package main

import (
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/spf13/cobra"

	"github.com/itohio/padscan/pkg/board"
	"github.com/itohio/padscan/pkg/monitor"
	"github.com/itohio/padscan/pkg/view"
)

// refreshInterval throttles widget updates.
const refreshInterval = 66 * time.Millisecond

func init() {
	viewCmd.Flags().BoolVarP(&viewOpts.Mock, "mock", "m", false, "use a simulated device instead of the serial port")
	rootCmd.AddCommand(viewCmd)
}

var (
	viewCmd = &cobra.Command{
		Use:   "view",
		Short: "Show every conductor as a live bar graph",
		Args:  cobra.NoArgs,
		RunE:  runView,
	}
	viewOpts = struct {
		Mock bool
	}{}
)

// viewState holds the application state.
type viewState struct {
	window     fyne.Window
	bars       *view.BarsWidget
	board      *board.Board
	connectBtn *widget.Button

	device monitor.Device
	done   chan struct{} // Closed when the reader goroutine exits
}

func runView(cmd *cobra.Command, args []string) error {
	table, err := cfg.Table()
	if err != nil {
		return err
	}
	b, err := newBoard(table)
	if err != nil {
		return err
	}

	application := app.NewWithID("com.itohio.padscan")
	window := application.NewWindow("Pad Scan")
	window.Resize(fyne.NewSize(900, 900))
	window.CenterOnScreen()

	state := &viewState{
		window: window,
		bars:   view.New(cfg.MaxSample()),
		board:  b,
	}

	window.SetContent(container.NewBorder(createToolbar(state), nil, nil, nil, container.NewVScroll(state.bars)))
	window.SetOnClosed(func() { disconnect(state) })
	window.ShowAndRun()
	return nil
}

// createToolbar creates the Connect, Reset and Settings buttons.
func createToolbar(state *viewState) fyne.CanvasObject {
	state.connectBtn = widget.NewButtonWithIcon("Connect", theme.LoginIcon(), func() {
		handleConnect(state)
	})
	resetBtn := widget.NewButtonWithIcon("", theme.ViewRefreshIcon(), func() {
		state.board.Reset()
		state.bars.UpdateData(nil, "")
	})
	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})
	return container.NewHBox(state.connectBtn, resetBtn, settingsBtn)
}

// handleConnect toggles the device connection.
func handleConnect(state *viewState) {
	if state.device != nil {
		disconnect(state)
		state.connectBtn.SetText("Connect")
		return
	}

	dev, err := openDevice(viewOpts.Mock)
	if err != nil {
		dialog.ShowError(err, state.window)
		return
	}
	if err := dev.Connect(); err != nil {
		dialog.ShowError(fmt.Errorf("failed to connect to %s: %w", cfg.Serial.Port, err), state.window)
		return
	}
	log.Info().Str("port", cfg.Serial.Port).Bool("mock", viewOpts.Mock).Msg("connected")

	state.device = dev
	state.done = make(chan struct{})
	state.connectBtn.SetText("Disconnect")
	go feedBoard(state, dev.Readings(), state.done)
}

// disconnect closes the device and waits for the reader to drain.
func disconnect(state *viewState) {
	if state.device == nil {
		return
	}
	state.device.Close()
	<-state.done
	state.device = nil
	log.Info().Msg("disconnected")
}

// feedBoard applies readings to the board and refreshes the widget at a bounded rate.
func feedBoard(state *viewState, readings <-chan monitor.Reading, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	dirty := false
	for {
		select {
		case r, ok := <-readings:
			if !ok {
				refreshBars(state)
				return
			}
			state.board.Update(r.Line, r.Timestamp)
			dirty = true
		case <-ticker.C:
			if dirty {
				refreshBars(state)
				dirty = false
			}
		}
	}
}

func refreshBars(state *viewState) {
	entries := state.board.Snapshot()
	status := cycleStatus(state.board)
	fyne.Do(func() {
		state.bars.UpdateData(entries, status)
	})
}

// cycleStatus summarises cycle completeness for the status line.
func cycleStatus(b *board.Board) string {
	switch {
	case b.Cycles() == 0:
		return "waiting for a full cycle"
	case b.Complete():
		return fmt.Sprintf("cycle %d: %d lines", b.Cycles(), b.Len())
	default:
		return fmt.Sprintf("cycle %d: incomplete, %d of %d lines", b.Cycles(), b.LastCycleLen(), b.Len())
	}
}

// showSettingsDialog edits the serial port and the scan step delay.
func showSettingsDialog(state *viewState) {
	portOptions := []string{}
	if ports, err := monitor.Ports(); err == nil {
		for _, p := range ports {
			portOptions = append(portOptions, p.Name)
		}
	}
	found := false
	for _, p := range portOptions {
		found = found || p == cfg.Serial.Port
	}
	if !found && cfg.Serial.Port != "" {
		portOptions = append(portOptions, cfg.Serial.Port)
	}

	portSelect := widget.NewSelect(portOptions, nil)
	portSelect.SetSelected(cfg.Serial.Port)

	stepEntry := widget.NewEntry()
	stepEntry.SetText(cfg.Timing.StepDelay.String())

	items := []*widget.FormItem{
		{Text: "Serial Port", Widget: portSelect},
		{Text: "Step Delay (mock)", Widget: stepEntry},
	}

	dialog.ShowForm("Settings", "Save", "Cancel", items, func(ok bool) {
		if !ok {
			return
		}
		step, err := time.ParseDuration(stepEntry.Text)
		if err != nil || step < 0 {
			dialog.ShowError(fmt.Errorf("invalid step delay %q", stepEntry.Text), state.window)
			return
		}

		wasConnected := state.device != nil
		if wasConnected {
			handleConnect(state)
		}

		if portSelect.Selected != "" {
			cfg.Serial.Port = portSelect.Selected
		}
		cfg.Timing.StepDelay = step
		if err := cfg.Save(rootOpts.Config); err != nil {
			dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
		}

		if wasConnected {
			handleConnect(state)
		}
	}, state.window)
}
