package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/doernaz/brandlift/internal/proposal"
)

var (
	proposeRunID string
	proposeOut   string
	proposeLimit int
)

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Generate a rebrand landing page for each lead of a run",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		snk, err := openSink(ctx, cfg, "propose")
		if err != nil {
			return err
		}
		defer snk.Close() //nolint:errcheck

		gen, err := proposal.New(ctx, cfg)
		if err != nil {
			return err
		}

		leads, err := snk.ListByRunID(ctx, proposeRunID)
		if err != nil {
			return eris.Wrapf(err, "list leads for run %s", proposeRunID)
		}
		if proposeLimit > 0 && len(leads) > proposeLimit {
			leads = leads[:proposeLimit]
		}

		written := 0
		for _, lead := range leads {
			if err := ctx.Err(); err != nil {
				return err
			}
			log := zap.L().With(zap.String("lead_id", lead.LeadID), zap.String("business", lead.DisplayName))
			p, err := gen.Generate(ctx, lead)
			if err != nil {
				log.Warn("proposal generation failed", zap.Error(err))
				continue
			}
			path, err := proposal.WriteSite(proposeOut, p)
			if err != nil {
				return err
			}
			log.Info("proposal written", zap.String("path", path))
			written++
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d of %d proposal(s) to %s\n", written, len(leads), proposeOut)
		if len(leads) > 0 && written == 0 {
			return eris.New("no proposals generated")
		}
		return nil
	},
}

func init() {
	proposeCmd.Flags().StringVar(&proposeRunID, "run", "", "run id")
	proposeCmd.Flags().StringVar(&proposeOut, "out", "sites", "output directory")
	proposeCmd.Flags().IntVar(&proposeLimit, "limit", 0, "maximum leads to process (0 = all)")
	_ = proposeCmd.MarkFlagRequired("run")
	rootCmd.AddCommand(proposeCmd)
}
