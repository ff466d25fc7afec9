package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/itohio/padscan/pkg/board"
	"github.com/itohio/padscan/pkg/monitor"
	"github.com/itohio/padscan/pkg/scan"
	"github.com/itohio/padscan/pkg/wiring"
)

func init() {
	monitorCmd.Flags().BoolVarP(&monitorOpts.Mock, "mock", "m", false, "use a simulated device instead of the serial port")
	monitorCmd.Flags().IntVarP(&monitorOpts.Cycles, "cycles", "n", 0, "stop after this many complete cycles (0 = until interrupted)")
	monitorCmd.Flags().BoolVar(&monitorOpts.List, "list", false, "list serial ports and exit")
	rootCmd.AddCommand(monitorCmd)
}

var (
	monitorCmd = &cobra.Command{
		Use:   "monitor",
		Short: "Read the diagnostic stream from the drum module",
		Long: `Connect to the drum module's serial console, print every reading and report
whether each scan cycle delivered the full schedule.`,
		Args: cobra.NoArgs,
		RunE: runMonitor,
	}
	monitorOpts = struct {
		Mock   bool
		Cycles int
		List   bool
	}{}
)

// openDevice creates the configured device. The caller connects it.
func openDevice(mock bool) (monitor.Device, error) {
	if mock {
		log.Info().Msg("using mocked device")
		m, err := monitor.NewMock(cfg, log)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	d := monitor.New(cfg.Serial.Port, cfg.Serial.BaudRate, monitor.DefaultBufferSize, log)
	d.SetMaxSample(cfg.MaxSample())
	return d, nil
}

// newBoard creates a board for the configured wiring and ADC.
func newBoard(table *wiring.Table) (*board.Board, error) {
	fullScale, err := cfg.ADC.FullScale()
	if err != nil {
		return nil, err
	}
	return board.New(table.Schedule(), cfg.MaxSample(), float32(fullScale)), nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if monitorOpts.List {
		ports, err := monitor.Ports()
		if err != nil {
			return err
		}
		for _, p := range ports {
			fmt.Println(p.Name)
		}
		return nil
	}

	table, err := cfg.Table()
	if err != nil {
		return err
	}
	b, err := newBoard(table)
	if err != nil {
		return err
	}

	dev, err := openDevice(monitorOpts.Mock)
	if err != nil {
		return err
	}
	if err := dev.Connect(); err != nil {
		return err
	}
	defer dev.Close()
	log.Info().Str("port", cfg.Serial.Port).Bool("mock", monitorOpts.Mock).Msg("connected")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	readings := dev.Readings()
	cycles := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case r, ok := <-readings:
			if !ok {
				log.Warn().Msg("device stream closed")
				return nil
			}
			fmt.Print(scan.Format(r.Line))

			before := b.Cycles()
			b.Update(r.Line, r.Timestamp)
			if b.Cycles() == before {
				continue
			}

			cycles++
			if b.Complete() {
				log.Debug().Int("cycle", b.Cycles()).Int("lines", b.Len()).Msg("cycle complete")
			} else {
				log.Warn().Int("cycle", b.Cycles()).Int("lines", b.LastCycleLen()).Int("expected", b.Len()).Msg("incomplete cycle")
			}
			if monitorOpts.Cycles > 0 && cycles >= monitorOpts.Cycles {
				return nil
			}
		}
	}
}
