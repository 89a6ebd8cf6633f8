package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/clinic-reports/internal/app"
	"github.com/odyssey-erp/clinic-reports/internal/platform/httpx"
	"github.com/odyssey-erp/clinic-reports/internal/reports"
	"github.com/odyssey-erp/clinic-reports/jobs"
)

func newWarmupCmd(c *cli) *cobra.Command {
	var payload jobs.SummaryWarmupPayload
	cmd := &cobra.Command{
		Use:   "warmup",
		Short: "Enqueue a summary cache warmup run",
		Example: `  clinicctl warmup
  clinicctl warmup --as-of 2024-03-31 --window month_to_date --window previous_month`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			client := jobs.NewClient(cfg.AsynqRedisOpt())
			defer client.Close()
			info, err := client.EnqueueSummaryWarmup(cmd.Context(), payload)
			if err != nil {
				if errors.Is(err, asynq.ErrDuplicateTask) {
					return errors.New("a warmup run is already queued")
				}
				return err
			}
			fmt.Fprintf(c.out, "enqueued %s on %s\n", info.ID, info.Queue)
			return nil
		},
	}
	cmd.Flags().StringVar(&payload.AsOf, "as-of", "", "anchor day for the windows (YYYY-MM-DD, default today)")
	cmd.Flags().StringSliceVar(&payload.Windows, "window", nil, "limit the run to named windows")
	return cmd
}

func newQueueCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show the job queue depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			inspector := asynq.NewInspector(cfg.AsynqRedisOpt())
			defer inspector.Close()
			info, err := inspector.GetQueueInfo(jobs.QueueDefault)
			if err != nil {
				return err
			}
			if c.asJSON {
				return writeJSON(c.out, info)
			}
			tw := newTable(c.out)
			printer.Fprintf(tw, "Queue\tPending\tActive\tScheduled\tRetry\tArchived\t\n")
			printer.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t\n", info.Queue, info.Pending, info.Active, info.Scheduled, info.Retry, info.Archived)
			return tw.Flush()
		},
	}
}

func newBumpCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "bump",
		Short: "Invalidate every cached report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			client, err := app.OpenRedis(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer client.Close()
			ver, err := reports.NewCache(client, cfg.ReportCacheTTL).Bump(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "report cache version %d\n", ver)
			return nil
		},
	}
}

func newHashTokenCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token [token]",
		Short: "Print the ADMIN_TOKEN_HASH value for a token",
		Long:  "Print the bcrypt hash to set as ADMIN_TOKEN_HASH. The token is read from stdin when omitted.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token: %w", err)
				}
				token = strings.TrimSpace(line)
			}
			hash, err := httpx.HashToken(token)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, hash)
			return nil
		},
	}
}
