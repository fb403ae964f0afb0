package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/jules-maulard/clash-royale-analytics/internal/adapters/http/api"
	"github.com/jules-maulard/clash-royale-analytics/internal/adapters/repository"
	"github.com/jules-maulard/clash-royale-analytics/internal/domain/model"
	"github.com/jules-maulard/clash-royale-analytics/pkg/logger"
)

var errNoReportDB = errors.New("no report database: pass a path or set report_db")

const maxServedPairs = 1000

func newReportCmd(c *cli) *cobra.Command {
	var (
		top   int
		order string
		runID string
		serve string
	)
	cmd := &cobra.Command{
		Use:   "report [report.db]",
		Short: "List the top archetype pairs of an exported run",
		Long: "List the top archetype pairs of a run exported with --report-db, ordered by\n" +
			"observed count, expected score or observed/expected ratio. With --serve the\n" +
			"pairs are served as JSON on /pairs instead.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.cfg.ReportDB
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return errNoReportDB
			}

			db, err := repository.OpenReport(path)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			if serve != "" {
				srv := api.NewServer(api.WithPairs(db, maxServedPairs))
				c.log.Info(ctx, "serving report", logger.String("addr", serve), logger.String("db", path))
				return srv.ListenAndServe(ctx, serve, c.log.Named("http"))
			}

			if runID == "" {
				if runID, err = db.LatestRun(ctx); err != nil {
					return err
				}
				if runID == "" {
					return fmt.Errorf("%s: %w", path, api.ErrNoRuns)
				}
			}
			pairs, err := db.TopPairs(ctx, runID, order, top)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s, top %d by %s\n", runID, len(pairs), order)
			printPairs(cmd.OutOrStdout(), pairs)
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 20, "number of pairs")
	cmd.Flags().StringVar(&order, "order", repository.OrderObserved, "observed, expected or ratio")
	cmd.Flags().StringVar(&runID, "run", "", "run id (default: latest)")
	cmd.Flags().StringVar(&serve, "serve", "", "serve /pairs on this address")
	return cmd
}

func printPairs(w io.Writer, pairs []model.PredictionRecord) {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignRight},
			},
		}),
	)
	table.Header("#", "A", "B", "Observed", "Wins A", "Count A", "Count B", "Expected", "Ratio")
	for i, p := range pairs {
		table.Append(i+1, p.A, p.B, p.ObservedCount, p.ObservedWinA, p.CountA, p.CountB,
			fmt.Sprintf("%.2f", p.ExpectedScore), fmt.Sprintf("%.2f", p.Ratio()))
	}
	table.Render()
}
