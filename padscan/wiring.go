package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/itohio/padscan/pkg/wiring"
)

func init() {
	wiringCmd.Flags().StringVar(&wiringOpts.Save, "save", "", "write the effective configuration to this file")
	rootCmd.AddCommand(wiringCmd)
}

var (
	wiringCmd = &cobra.Command{
		Use:   "wiring",
		Short: "Print the scan schedule of the wiring table",
		Long: `Validate the configured wiring table and print every reading of one scan cycle
in order, with the ADC channel each conductor is converted on.`,
		Args: cobra.NoArgs,
		RunE: printWiring,
	}
	wiringOpts = struct {
		Save string
	}{}
)

func printWiring(cmd *cobra.Command, args []string) error {
	table, err := cfg.Table()
	if err != nil {
		return err
	}
	if err := writeSchedule(os.Stdout, table); err != nil {
		return err
	}
	if wiringOpts.Save != "" {
		if err := cfg.Save(wiringOpts.Save); err != nil {
			return err
		}
		log.Info().Str("file", wiringOpts.Save).Msg("configuration saved")
	}
	return nil
}

func writeSchedule(w io.Writer, table *wiring.Table) error {
	refADC, err := table.ADC(table.Reference)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "wiring %s: reference %s (%s)\n", table.Name, table.Reference.Label(), refADC)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tINPUT\tLABEL\tADC")
	for i, e := range table.Schedule() {
		adc, err := table.ADC(e.Source)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", i+1, e.Input, e.Source.Label(), adc)
	}
	return tw.Flush()
}
