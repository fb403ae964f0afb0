package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/jules-maulard/clash-royale-analytics/internal/app"
)

func newRunCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <input> <out-dir>",
		Short: "Run clean, graph and stats in sequence",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			var m *app.Manifest
			err = c.withMetrics(cmd.Context(), svc, func(ctx context.Context) error {
				m, err = svc.Run(ctx, args[0], args[1])
				return err
			})
			if err != nil {
				return err
			}
			printManifest(cmd.OutOrStdout(), m)
			return nil
		},
	}
	c.cleanFlags(cmd)
	c.graphFlags(cmd)
	c.statsFlags(cmd)
	cmd.Flags().StringVar(&c.reportDB, "report-db", "", "export scored pairs to this SQLite file")
	return cmd
}

func newCleanCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean <input> <out>",
		Short: "Deduplicate and normalize raw match records",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			var st *app.CleanStats
			err = c.withMetrics(cmd.Context(), svc, func(ctx context.Context) error {
				st, err = svc.Clean(ctx, args[0], args[1])
				return err
			})
			if err != nil {
				return err
			}
			printManifest(cmd.OutOrStdout(), &app.Manifest{Clean: st})
			return nil
		},
	}
	c.cleanFlags(cmd)
	return cmd
}

func newGraphCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <clean> <out-dir>",
		Short: "Build the archetype node and edge tables",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			var st *app.GraphStats
			err = c.withMetrics(cmd.Context(), svc, func(ctx context.Context) error {
				st, err = svc.BuildGraph(ctx, args[0], args[1])
				return err
			})
			if err != nil {
				return err
			}
			printManifest(cmd.OutOrStdout(), &app.Manifest{Graph: st})
			return nil
		},
	}
	c.graphFlags(cmd)
	return cmd
}

func newStatsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <nodesEdges-dir> <out>",
		Short: "Score archetype pairs against the independence baseline",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			var st *app.ScoreStats
			err = c.withMetrics(cmd.Context(), svc, func(ctx context.Context) error {
				st, err = svc.Score(ctx, args[0], args[1])
				return err
			})
			if err != nil {
				return err
			}
			printManifest(cmd.OutOrStdout(), &app.Manifest{Stats: st})
			return nil
		},
	}
	c.statsFlags(cmd)
	return cmd
}

func (c *cli) cleanFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.strategy, "dedup", "", "dedup strategy: sweep or windowed")
}

func (c *cli) graphFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&c.minSize, "min-size", 0, "smallest archetype size (1-8)")
	cmd.Flags().BoolVar(&c.noCombiner, "no-combiner", false, "disable per-worker pre-aggregation")
	cmd.Flags().StringVar(&c.store, "store", "", "aggregate store: memory or badger")
}

func (c *cli) statsFlags(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&c.minSupport, "min-support", 0, "minimum node count for scoring")
}

// printManifest renders one row per stage that ran.
func printManifest(w io.Writer, m *app.Manifest) {
	if m.RunID != "" {
		fmt.Fprintf(w, "run %s (%s)\n", m.RunID, m.Duration)
	}

	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignRight},
			},
		}),
	)
	table.Header("Stage", "In", "Out", "Detail", "Duration", "Output")
	if st := m.Clean; st != nil {
		table.Append(app.StageClean, st.Read, st.Written,
			fmt.Sprintf("groups=%d suppressed=%d %s", st.Groups, st.Suppressed, formatCounts(st.Rejected)),
			st.Duration.String(), st.Output)
	}
	if st := m.Graph; st != nil {
		table.Append(app.StageGraph, st.Matches, st.Nodes+st.Edges,
			fmt.Sprintf("nodes=%d edges=%d partials=%d", st.Nodes, st.Edges, st.Partials),
			st.Duration.String(), st.Output)
	}
	if st := m.Stats; st != nil {
		table.Append(app.StageStats, st.Edges, st.Scored,
			fmt.Sprintf("pearson=%.3f %s", st.Calibration.Pearson, formatCounts(st.Dropped)),
			st.Duration.String(), st.Output)
	}
	table.Render()
}

// formatCounts renders a reason map as sorted key=value pairs.
func formatCounts(m map[string]int64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
	}
	return strings.Join(parts, " ")
}
