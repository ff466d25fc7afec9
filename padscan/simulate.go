package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/itohio/padscan/pkg/config"
	"github.com/itohio/padscan/pkg/frontend"
	"github.com/itohio/padscan/pkg/scan"
	"github.com/itohio/padscan/pkg/sim"
	"github.com/itohio/padscan/pkg/wiring"
)

func init() {
	simulateCmd.Flags().IntVarP(&simulateOpts.Cycles, "cycles", "n", 1, "number of scan cycles (0 = until interrupted)")
	simulateCmd.Flags().DurationVar(&simulateOpts.Step, "step", 0, "pause after each reading (default from config)")
	simulateCmd.Flags().StringArrayVarP(&simulateOpts.Levels, "level", "l", nil, "source level as LABEL=RAW, e.g. MUX1_CH5=4095")
	simulateCmd.Flags().StringArrayVar(&simulateOpts.Fail, "fail", nil, "ADC channel whose conversions fail, e.g. ADC2_CH7")
	simulateCmd.Flags().BoolVar(&simulateOpts.Raw, "raw", false, "compare unconditioned reads with stable reads")
	simulateCmd.SetHelpTemplate(simulateCmd.HelpTemplate() + extendedSimulateHelp)
	rootCmd.AddCommand(simulateCmd)
}

var extendedSimulateHelp = `
The simulated front end models the ADC's sample-and-hold capacitor: every
conversion moves the held charge part of the way towards the selected source and
idle time bleeds it towards ground. --raw shows the resulting ghosting by reading
the schedule once without conditioning and once with stable reads.
`

var (
	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Run the scanner against a simulated front end",
		Long:  `Run the pad scanner against a simulated front end and print the diagnostic stream to stdout.`,
		Args:  cobra.NoArgs,
		RunE:  simulate,
	}
	simulateOpts = struct {
		Cycles int
		Step   time.Duration
		Levels []string
		Fail   []string
		Raw    bool
	}{}
)

func simulate(cmd *cobra.Command, args []string) error {
	for _, arg := range simulateOpts.Levels {
		l, err := parseLevel(arg)
		if err != nil {
			return err
		}
		cfg.Sim.Levels = append(cfg.Sim.Levels, l)
	}
	if cmd.Flags().Changed("step") {
		cfg.Timing.StepDelay = simulateOpts.Step
	}

	table, err := cfg.Table()
	if err != nil {
		return err
	}
	s, err := sim.New(table, &cfg.Sim, cfg.ADC.Resolution)
	if err != nil {
		return err
	}
	for _, arg := range simulateOpts.Fail {
		adc, err := wiring.ParseADCChannel(arg)
		if err != nil {
			return err
		}
		s.FailOn(adc)
	}

	fe := frontend.New(table, s, s, append(cfg.FrontEndOptions(), frontend.WithSleep(s.Sleep))...)

	if simulateOpts.Raw {
		return compareReads(os.Stdout, fe, s)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scanner := scan.New(fe, table, scan.WriterSink(os.Stdout),
		scan.WithStepDelay(cfg.Timing.StepDelay),
		scan.WithErrorHandler(logReadFailure),
	)
	log.Debug().Int("lines", scanner.Len()).Int("cycles", simulateOpts.Cycles).Msg("simulating")

	if err := scanner.Run(ctx, simulateOpts.Cycles); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func logReadFailure(e wiring.Entry, err error) {
	log.Warn().Err(err).Uint8("input", uint8(e.Input)).Str("label", e.Source.Label()).Msg("reading failed")
}

// parseLevel parses LABEL=RAW.
func parseLevel(arg string) (config.SimLevel, error) {
	label, raw, ok := strings.Cut(arg, "=")
	if !ok || label == "" {
		return config.SimLevel{}, fmt.Errorf("invalid level %q: expected LABEL=RAW", arg)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return config.SimLevel{}, fmt.Errorf("invalid level %q: %w", arg, err)
	}
	return config.SimLevel{Label: label, Raw: v}, nil
}

// compareReads reads the whole schedule once with raw reads and once with stable
// reads, each pass following on from the previous conversion.
func compareReads(w io.Writer, fe *frontend.FrontEnd, s *sim.Sim) error {
	table := fe.Table()
	sched := table.Schedule()

	s.Reset()
	raw := make([]string, len(sched))
	for i, e := range sched {
		v, err := fe.ReadRaw(e.Source)
		if err != nil {
			raw[i] = scan.FailureMarker
			continue
		}
		raw[i] = strconv.Itoa(int(v))
	}

	s.Reset()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "INPUT\tLABEL\tRAW\tSTABLE\t")
	for i, e := range sched {
		stable := scan.FailureMarker
		if v, err := fe.ReadStable(e.Source, table.Reference); err == nil {
			stable = strconv.Itoa(int(v))
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t\n", e.Input, e.Source.Label(), raw[i], stable)
	}
	return tw.Flush()
}
