// Command clinicctl runs report calculations offline and operates the
// warmup queue and report cache.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

type cli struct {
	out      io.Writer
	errOut   io.Writer
	in       io.Reader
	snapshot string
	envFile  string
	asJSON   bool
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "clinicctl",
		Short:         "Clinic financial reports from the command line",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.envFile == "" {
				return nil
			}
			// Variables already present in the environment win over the file.
			if err := godotenv.Load(c.envFile); err != nil {
				return fmt.Errorf("load env file: %w", err)
			}
			return nil
		},
	}
	root.SetOut(c.out)
	root.SetErr(c.errOut)
	root.SetIn(c.in)
	root.PersistentFlags().StringVar(&c.snapshot, "snapshot", os.Getenv("SNAPSHOT_PATH"), "JSON snapshot file (default: the configured record store)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", "", "dotenv file with REDIS_ADDR, PG_DSN and friends")
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "print JSON instead of a table")

	root.AddCommand(
		newSummaryCmd(c),
		newCompareCmd(c),
		newTrendCmd(c),
		newWarmupCmd(c),
		newQueueCmd(c),
		newBumpCmd(c),
		newHashTokenCmd(c),
	)
	return root
}

func main() {
	c := &cli{out: os.Stdout, errOut: os.Stderr, in: os.Stdin}
	if err := newRootCmd(c).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "clinicctl: %v\n", err)
		os.Exit(1)
	}
}
