//go:build linux

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/itohio/padscan/pkg/frontend"
	"github.com/itohio/padscan/pkg/rig"
	"github.com/itohio/padscan/pkg/scan"
)

func init() {
	rigCmd.Flags().IntVarP(&rigOpts.Cycles, "cycles", "n", 1, "number of scan cycles (0 = until interrupted)")
	rigCmd.Flags().StringVar(&rigOpts.Chip, "chip", "", "GPIO chip override (e.g., gpiochip0)")
	rigCmd.Flags().StringVar(&rigOpts.SPI, "spi", "", "SPI port override (e.g., /dev/spidev0.0)")
	rigCmd.Flags().IntVar(&rigOpts.IdleLimit, "idle-limit", 100, "warn when the reference reads above this raw value")
	rootCmd.AddCommand(rigCmd)
}

var (
	rigCmd = &cobra.Command{
		Use:   "rig",
		Short: "Run the scanner on a Linux bench rig",
		Long: `Drive the mux select lines from a GPIO chip and convert through an MCP3208 on
SPI, running the same scan as the firmware and printing the diagnostic stream.`,
		Args: cobra.NoArgs,
		RunE: runRig,
	}
	rigOpts = struct {
		Cycles    int
		Chip      string
		SPI       string
		IdleLimit int
	}{}
)

func runRig(cmd *cobra.Command, args []string) error {
	if rigOpts.Chip != "" {
		cfg.Rig.Chip = rigOpts.Chip
	}
	if rigOpts.SPI != "" {
		cfg.Rig.SPIPort = rigOpts.SPI
	}

	r, err := rig.Open(cfg)
	if err != nil {
		return err
	}
	defer r.Close()
	log.Info().Str("chip", cfg.Rig.Chip).Str("spi", cfg.Rig.SPIPort).Msg("rig opened")

	checkReference(r.FrontEnd, frontend.RawSample(rigOpts.IdleLimit))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scanner := scan.New(r, r.Table(), scan.WriterSink(os.Stdout),
		scan.WithStepDelay(cfg.Timing.StepDelay),
		scan.WithErrorHandler(logReadFailure),
	)
	if err := scanner.Run(ctx, rigOpts.Cycles); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// checkReference warns when the reference channel does not idle near ground.
func checkReference(fe *frontend.FrontEnd, limit frontend.RawSample) {
	ref := fe.Table().Reference
	v, err := fe.ReadRaw(ref)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read reference")
		return
	}
	if v > limit {
		log.Warn().Str("reference", ref.Label()).Uint16("raw", uint16(v)).Msg("reference does not idle near ground")
		return
	}
	log.Debug().Str("reference", ref.Label()).Uint16("raw", uint16(v)).Msg("reference ok")
}
