package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/clinic-reports/internal/app"
	"github.com/odyssey-erp/clinic-reports/internal/records"
	"github.com/odyssey-erp/clinic-reports/internal/reports"
)

func (c *cli) service(ctx context.Context) (*reports.Service, func(), error) {
	if c.snapshot != "" {
		return reports.NewService(records.NewFileSource(c.snapshot), nil, nil), func() {}, nil
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	store, err := app.OpenRecordStore(ctx, cfg, nil)
	if err != nil {
		return nil, nil, err
	}
	return reports.NewService(store.Source, nil, nil), store.Close, nil
}

type rangeFlags struct {
	start string
	end   string
}

func (f *rangeFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.start, "start", "", "first day included (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "last day included (YYYY-MM-DD)")
}

func (f rangeFlags) parse() (reports.DateRange, error) {
	return reports.ParseDateRange(f.start, f.end)
}

func newSummaryCmd(c *cli) *cobra.Command {
	var flags rangeFlags
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the financial summary for a date range",
		Example: `  clinicctl summary --snapshot clinic.json --start 2024-03-01 --end 2024-03-31
  clinicctl summary --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := flags.parse()
			if err != nil {
				return err
			}
			svc, closeFn, err := c.service(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			summary, err := svc.Summary(cmd.Context(), rng)
			if err != nil {
				return err
			}
			if c.asJSON {
				return writeJSON(c.out, summary)
			}
			return renderSummary(c.out, rng, summary)
		},
	}
	flags.bind(cmd)
	return cmd
}

func newCompareCmd(c *cli) *cobra.Command {
	var flags rangeFlags
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare a bounded range with the window just before it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := flags.parse()
			if err != nil {
				return err
			}
			svc, closeFn, err := c.service(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			cmp, err := svc.Compare(cmd.Context(), rng)
			if err != nil {
				return err
			}
			if c.asJSON {
				return writeJSON(c.out, cmp)
			}
			return renderComparison(c.out, rng, cmp)
		},
	}
	flags.bind(cmd)
	return cmd
}

func newTrendCmd(c *cli) *cobra.Command {
	var (
		flags       rangeFlags
		granularity string
	)
	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Print revenue and profit per period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := flags.parse()
			if err != nil {
				return err
			}
			g, err := reports.ParseGranularity(granularity)
			if err != nil {
				return err
			}
			svc, closeFn, err := c.service(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			points, err := svc.Trend(cmd.Context(), rng, g)
			if err != nil {
				return err
			}
			if c.asJSON {
				return writeJSON(c.out, points)
			}
			return renderTrend(c.out, points)
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&granularity, "granularity", "month", "day, month, quarter or year")
	return cmd
}
