package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"creditslot/internal/scheduler"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(payoutsCmd)
	payoutsCmd.AddCommand(payoutsScanCmd)
	payoutsCmd.AddCommand(payoutsReleaseCmd)
	payoutsCmd.AddCommand(payoutsCalculateCmd)
	payoutsCmd.AddCommand(payoutsRunCmd)
}

var payoutsCmd = &cobra.Command{
	Use:   "payouts",
	Short: "Operate on merchant payouts",
}

var payoutsScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Calculate payouts for every ended slot that has none",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.payouts.ScanAndCalculate(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	},
}

var payoutsReleaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Move locked payouts whose release time has passed to pending",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.payouts.ReleaseDue(cmd.Context())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "released %d payouts\n", n)
		return err
	},
}

var payoutsCalculateCmd = &cobra.Command{
	Use:   "calculate SLOT_ID",
	Short: "Calculate the payout of one ended slot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		slotID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || slotID <= 0 {
			return fmt.Errorf("invalid slot id %q", args[0])
		}
		a, err := loadApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.payouts.CalculateForSlot(cmd.Context(), slotID)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), p)
	},
}

var payoutsRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scan and release jobs once, as the scheduler would",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		s := scheduler.New(scheduler.Config{
			Interval: a.cfg.Payout.ScanInterval,
			Timeout:  a.cfg.Payout.ScanTimeout,
		}, scheduler.PayoutJobs(a.payouts)...)
		return s.RunOnce(cmd.Context())
	},
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
