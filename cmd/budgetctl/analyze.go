package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"blockbudget/internal/cli"
	"blockbudget/internal/core"
)

func (a *app) analyzeCmd() *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Show budget vs actual for a month",
		Long:  `Print every active category with its budget, spending and status, followed by the month totals.`,
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

			m := svc.CurrentMonth()
			if month != "" {
				if m, err = core.ParseMonth(month); err != nil {
					return fmt.Errorf("invalid --month %q: want YYYY-MM", month)
				}
			}

			analysis, err := svc.AnalyzeMonth(cmd.Context(), user, m)
			if err != nil {
				return fmt.Errorf("analyze %s: %w", m, err)
			}
			return cli.RenderAnalysis(a.out, m, analysis)
		},
	}

	cmd.Flags().StringVar(&month, "month", "", "month to analyze as YYYY-MM (default: current month)")
	return cmd
}
