package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jules-maulard/clash-royale-analytics/internal/adapters/repository"
	"github.com/jules-maulard/clash-royale-analytics/internal/adapters/textio"
	"github.com/jules-maulard/clash-royale-analytics/internal/domain/aggregate"
	"github.com/jules-maulard/clash-royale-analytics/internal/domain/graph"
	"github.com/jules-maulard/clash-royale-analytics/internal/domain/validate"
	"github.com/jules-maulard/clash-royale-analytics/pkg/logger"
	"github.com/jules-maulard/clash-royale-analytics/pkg/metrics"
)

// Partials per batch when the combiner is disabled.
const passthroughBatchSize = 4096

// GraphStats are the counters of one graph stage.
type GraphStats struct {
	Read             int64         `yaml:"read" json:"read"`
	Matches          int64         `yaml:"matches" json:"matches"`
	Rejected         int64         `yaml:"rejected" json:"rejected"`
	NodeObservations int64         `yaml:"node_observations" json:"nodeObservations"`
	EdgeObservations int64         `yaml:"edge_observations" json:"edgeObservations"`
	Partials         int64         `yaml:"partials" json:"partials"`
	Nodes            int64         `yaml:"nodes" json:"nodes"`
	Edges            int64         `yaml:"edges" json:"edges"`
	Output           string        `yaml:"output" json:"output"`
	Duration         time.Duration `yaml:"duration" json:"duration"`
}

// partialEmitter is a worker-local graph.Emitter that ships partials to the
// aggregator: a Combiner or a Passthrough.
type partialEmitter interface {
	graph.Emitter
	Flush() error
	Emitted() int
}

type graphShard struct {
	validator *validate.Validator
	emitter   partialEmitter
	matches   int64
	rejected  int64
	nodes     int64
	edges     int64
}

// BuildGraph turns the clean log under in into node and edge tables written
// to outDir/nodes and outDir/edges.
func (s *Service) BuildGraph(ctx context.Context, in, outDir string) (*GraphStats, error) {
	s.setRunning(StageGraph)
	defer s.setRunning("")

	start := time.Now()
	s.logger.Info(ctx, "graph started",
		logger.String("input", in),
		logger.Int("min_size", s.minArchetypeSize),
		logger.Bool("combiner", s.combiner),
		logger.String("store", s.storeBackend),
	)

	stats, err := s.buildGraph(ctx, in, outDir)
	if err != nil {
		s.logger.Error(ctx, "graph failed", logger.Error(err))
		return nil, stageError(StageGraph, err)
	}
	stats.Duration = time.Since(start)
	metrics.RecordStageDuration(StageGraph, stats.Duration)
	s.record(func(m *Manifest) { m.Graph = stats })

	s.logger.Info(ctx, "graph finished",
		logger.Int64("matches", stats.Matches),
		logger.Int64("partials", stats.Partials),
		logger.Int64("nodes", stats.Nodes),
		logger.Int64("edges", stats.Edges),
		logger.Duration("took", stats.Duration),
	)
	return stats, nil
}

func (s *Service) buildGraph(ctx context.Context, in, outDir string) (*GraphStats, error) {
	store, err := repository.Open(s.storeBackend, s.storeOpts...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	agg := aggregate.NewAggregator(store)
	builder := graph.NewBuilder(graph.WithMinSize(s.minArchetypeSize))
	workers := s.workerCount
	batches := make(chan []aggregate.Partial, workers)

	g, gctx := errgroup.WithContext(ctx)
	sink := func(batch []aggregate.Partial) error {
		select {
		case batches <- batch:
			return nil
		case <-gctx.Done():
			return gctx.Err()
		}
	}

	shards := make([]graphShard, workers)
	for i := range shards {
		shards[i].validator = validate.New()
		if s.combiner {
			shards[i].emitter = aggregate.NewCombiner(s.combinerFlushSize, sink)
		} else {
			shards[i].emitter = aggregate.NewPassthrough(passthroughBatchSize, sink)
		}
	}

	// The single reducer owns the store.
	g.Go(func() error {
		for batch := range batches {
			if err := agg.Merge(gctx, batch); err != nil {
				return err
			}
			metrics.RecordCombinerPartials(len(batch))
		}
		return nil
	})

	var lines lineCounts
	g.Go(func() error {
		defer close(batches)
		err := runStage(gctx, s, StageGraph, workers, s.lineProducer(StageGraph, in, true, &lines),
			func(ctx context.Context, id int, line string) error {
				sh := &shards[id]
				rec, err := sh.validator.Parse(line)
				if err != nil {
					sh.rejected++
					metrics.RecordRejected(StageGraph, validate.Reason(err))
					return nil
				}
				nodes, edges := builder.Build(rec, sh.emitter)
				sh.matches++
				sh.nodes += int64(nodes)
				sh.edges += int64(edges)
				return nil
			})
		if err != nil {
			return err
		}
		for _, sh := range shards {
			if err := sh.emitter.Flush(); err != nil {
				return fmt.Errorf("flush partials: %w", err)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	metrics.RecordRead(StageGraph, int(lines.read))
	if lines.read == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyInput, in)
	}

	stats := &GraphStats{Read: lines.read, Rejected: lines.oversized}
	for i := int64(0); i < lines.oversized; i++ {
		metrics.RecordRejected(StageGraph, validate.Reason(validate.ErrMalformed))
	}
	for _, sh := range shards {
		stats.Matches += sh.matches
		stats.Rejected += sh.rejected
		stats.NodeObservations += sh.nodes
		stats.EdgeObservations += sh.edges
		stats.Partials += int64(sh.emitter.Emitted())
	}
	metrics.RecordObservations(aggregate.KindNode.String(), int(stats.NodeObservations))
	metrics.RecordObservations(aggregate.KindEdge.String(), int(stats.EdgeObservations))
	if stats.Matches == 0 {
		return nil, fmt.Errorf("%w: no valid match in %s", ErrNoOutput, in)
	}

	tables, err := agg.Materialize(ctx)
	if err != nil {
		return nil, err
	}
	if err := writeTables(outDir, tables); err != nil {
		return nil, err
	}
	stats.Nodes = int64(len(tables.Nodes))
	stats.Edges = int64(len(tables.Edges))
	stats.Output = outDir
	metrics.UpdateTableRows(DirNodes, len(tables.Nodes))
	metrics.UpdateTableRows(DirEdges, len(tables.Edges))
	metrics.RecordEmitted(StageGraph, len(tables.Nodes)+len(tables.Edges))
	return stats, nil
}

func writeTables(outDir string, t aggregate.Tables) error {
	nodes := make([]string, len(t.Nodes))
	for i, n := range t.Nodes {
		nodes[i] = textio.FormatNode(n)
	}
	if _, err := textio.WriteLines(filepath.Join(outDir, DirNodes), nodes); err != nil {
		return fmt.Errorf("write nodes: %w", err)
	}

	edges := make([]string, len(t.Edges))
	for i, e := range t.Edges {
		edges[i] = textio.FormatEdge(e)
	}
	if _, err := textio.WriteLines(filepath.Join(outDir, DirEdges), edges); err != nil {
		return fmt.Errorf("write edges: %w", err)
	}
	return nil
}
