package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/CharlyTlelo/abc-exprezo-contratos/model"
	"github.com/CharlyTlelo/abc-exprezo-contratos/service"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status [folio]",
	Short: "Show contract status and section progress",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		workflow, closeStore, err := openWorkflow(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			progress, err := workflow.Progress(ctx, args[0])
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(out, progress)
			}
			printProgress(out, progress)
			return nil
		}

		contracts, err := workflow.ListContracts(ctx)
		if err != nil {
			return err
		}
		views := make([]service.ProgressView, 0, len(contracts))
		for _, c := range contracts {
			progress, err := workflow.Progress(ctx, c.Folio)
			if err != nil {
				return err
			}
			views = append(views, progress)
		}
		if statusJSON {
			return writeJSON(out, views)
		}
		printContracts(out, views)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output in JSON format")
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func printContracts(w io.Writer, views []service.ProgressView) {
	if len(views) == 0 {
		fmt.Fprintln(w, "No contracts")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FOLIO\tCONTRATO\tESTATUS\tDOCS\tAVANCE\tACTUALIZADO")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%d%%\t%s\n",
			v.Contract.Folio,
			v.Contract.Name,
			v.Contract.Status,
			v.DocsReady, v.TotalDocs,
			v.Percent,
			humanize.Time(v.Contract.UpdatedAt),
		)
	}
	tw.Flush()
}

func printProgress(w io.Writer, v service.ProgressView) {
	fmt.Fprintf(w, "%s (%s) %s, updated %s\n",
		v.Contract.Folio, v.Contract.Name, v.Contract.Status, humanize.Time(v.Contract.UpdatedAt))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, s := range v.Sections {
		mark := " "
		switch {
		case s.HasRejected:
			mark = "x"
		case s.Complete:
			mark = "*"
		}
		fmt.Fprintf(tw, "[%s]\t%s\t%d/%d\t%d%%\n", mark, s.Title, s.Ready, s.Total, s.Percent)
	}
	tw.Flush()

	fmt.Fprintf(w, "%d/%d sections complete, %s of %s documents ready\n",
		v.SectionsComplete, v.TotalSections, humanize.Comma(int64(v.DocsReady)), humanize.Comma(int64(v.TotalDocs)))
	if v.CanApprove && v.Contract.Status == model.StatusInReview {
		fmt.Fprintln(w, "Ready for review")
	}
}
