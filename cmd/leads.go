package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/doernaz/brandlift/internal/discovery"
	"github.com/doernaz/brandlift/internal/export"
)

var (
	leadsRunID string
	leadsOut   string
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect persisted leads",
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the leads of a run",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		snk, err := openSink(ctx, cfg, "leads")
		if err != nil {
			return err
		}
		defer snk.Close() //nolint:errcheck

		leads, err := snk.ListByRunID(ctx, leadsRunID)
		if err != nil {
			return eris.Wrapf(err, "list leads for run %s", leadsRunID)
		}
		return printLeads(cmd.OutOrStdout(), leads)
	},
}

var leadsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the leads of a run to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		snk, err := openSink(ctx, cfg, "leads")
		if err != nil {
			return err
		}
		defer snk.Close() //nolint:errcheck

		leads, err := snk.ListByRunID(ctx, leadsRunID)
		if err != nil {
			return eris.Wrapf(err, "list leads for run %s", leadsRunID)
		}
		if err := export.WriteXLSX(leadsOut, leads); err != nil {
			return err
		}
		zap.L().Info("leads exported", zap.String("run_id", leadsRunID), zap.Int("leads", len(leads)), zap.String("path", leadsOut))
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d leads to %s\n", len(leads), leadsOut)
		return nil
	},
}

func printLeads(w io.Writer, leads []*discovery.VerifiedLead) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BUSINESS\tLOCATION\tEMAIL\tSOURCE\tCONFIDENCE\tSTATUS")
	for _, l := range leads {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			l.DisplayName, l.Location, l.ContactEmail, l.EnrichmentSource,
			export.FormatConfidence(l.Confidence), l.Status())
	}
	if err := tw.Flush(); err != nil {
		return eris.Wrap(err, "print leads")
	}
	fmt.Fprintf(w, "%d lead(s)\n", len(leads))
	return nil
}

func init() {
	for _, c := range []*cobra.Command{leadsListCmd, leadsExportCmd} {
		c.Flags().StringVar(&leadsRunID, "run", "", "run id")
		_ = c.MarkFlagRequired("run")
		leadsCmd.AddCommand(c)
	}
	leadsExportCmd.Flags().StringVar(&leadsOut, "out", "leads.xlsx", "output workbook path")
	rootCmd.AddCommand(leadsCmd)
}
