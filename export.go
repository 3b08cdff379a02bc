package main

import (
	"fmt"
	"os"

	"github.com/CharlyTlelo/abc-exprezo-contratos/service"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <folio>",
	Short: "Write every document of a contract to a ZIP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folio := args[0]
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		workflow, closeStore, err := openWorkflow(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		out := exportOutput
		if out == "" {
			out = service.ExportName(folio)
		}

		f, err := os.Create(out)
		if err != nil {
			return err
		}
		n, err := workflow.Export(cmd.Context(), folio, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(out)
			return err
		}

		info, err := os.Stat(out)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d documents, %s\n", out, n, humanize.Bytes(uint64(info.Size())))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default <folio>-modelado.zip)")
}
