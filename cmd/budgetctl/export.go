package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func (a *app) exportCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export expenses as CSV",
		Long:  `Write every stored expense as date,category,amount,note. Recurring rules are not expanded.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := a.userID()
			if err != nil {
				return err
			}

			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			var w io.Writer = a.out
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", outPath, err)
				}
				defer f.Close()
				w = f
			}

			if err := svc.ExportCSV(cmd.Context(), w, user); err != nil {
				return err
			}
			if w != a.out {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported expenses to %s\n", outPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default: stdout)")
	return cmd
}
