package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/doernaz/brandlift/internal/discovery"
)

var (
	scanLocations     []string
	scanKeywords      []string
	scanTarget        int
	scanMaxIterations int
	scanProfile       string
	scanMinSignal     float64
	scanRunID         string
	scanJSON          bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a pivot scan until the lead target is reached",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initScan(ctx, cfg, "scan")
		if err != nil {
			return err
		}
		defer env.Close()

		req := applyScanFlags(defaultRequest(cfg), cmd.Flags())
		res, runErr := env.Controller.Run(ctx, req, func(s discovery.RunState) {
			zap.L().Debug("scan progress",
				zap.Int("loop", s.LoopCount),
				zap.String("pivot", s.Current.String()),
				zap.Int("total_verified", s.TotalVerified),
			)
		})
		if res != nil {
			if err := printResult(cmd.OutOrStdout(), res, scanJSON); err != nil {
				return err
			}
		}
		return runErr
	},
}

// applyScanFlags overrides req with the flags the user set.
func applyScanFlags(req discovery.RunRequest, flags *pflag.FlagSet) discovery.RunRequest {
	if flags.Changed("location") {
		req.Locations = scanLocations
	}
	if flags.Changed("keyword") {
		req.Keywords = scanKeywords
	}
	if flags.Changed("target") {
		req.TargetCount = scanTarget
	}
	if flags.Changed("max-iterations") {
		req.MaxIterations = scanMaxIterations
	}
	if flags.Changed("profile") {
		req.Profile = scanProfile
	}
	if flags.Changed("min-signal") {
		req.MinSignal = scanMinSignal
	}
	req.RunID = scanRunID
	return req
}

func printResult(w io.Writer, res *discovery.RunResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintf(w, "run:        %s\n", res.RunID)
	fmt.Fprintf(w, "status:     %s (%s)\n", res.Status, res.TerminationReason)
	fmt.Fprintf(w, "verified:   %d\n", res.TotalVerified)
	fmt.Fprintf(w, "iterations: %d\n", res.Iterations)
	for i, p := range res.Visited {
		fmt.Fprintf(w, "  %2d. %s\n", i+1, p)
	}
	fmt.Fprintln(w, res.Message)
	return nil
}

func init() {
	f := scanCmd.Flags()
	f.StringArrayVar(&scanLocations, "location", nil, "location to pivot over, repeatable (default from config)")
	f.StringArrayVar(&scanKeywords, "keyword", nil, "keyword to pivot over, repeatable (default from config)")
	f.IntVar(&scanTarget, "target", 0, "number of verified leads to collect (default from config)")
	f.IntVar(&scanMaxIterations, "max-iterations", 0, "maximum pivot iterations (default from config)")
	f.StringVar(&scanProfile, "profile", "", "filter profile (default from config)")
	f.Float64Var(&scanMinSignal, "min-signal", 0, "minimum rating override")
	f.StringVar(&scanRunID, "run-id", "", "run id (default: generated)")
	f.BoolVar(&scanJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(scanCmd)
}
