package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/jules-maulard/clash-royale-analytics/internal/testmatches"
	"github.com/jules-maulard/clash-royale-analytics/pkg/logger"
)

func main() {
	def := testmatches.DefaultConfig()
	var (
		matches = flag.Int("matches", def.Matches, "Number of real matches to generate")
		seed    = flag.Int64("seed", def.Seed, "Generator seed")
		copies  = flag.Int("copies", def.MaxCopies, "Maximum submissions per match")
		jitter  = flag.Duration("jitter", def.Jitter, "Largest timestamp drift between copies")
		swap    = flag.Float64("swap", def.SwapRate, "Share of copies with players swapped")
		rematch = flag.Float64("rematch", def.RematchRate, "Share of matches replayed later")
		noise   = flag.Float64("noise", def.NoiseRate, "Malformed lines per match")
		output  = flag.String("output", def.Output, "Output NDJSON file")
		verify  = flag.Bool("verify", false, "Run the clean stage on the output and check it")
		workers = flag.Int("workers", runtime.NumCPU(), "Workers of the verification run")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testmatches.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := def
	cfg.Matches = *matches
	cfg.Seed = *seed
	cfg.MaxCopies = *copies
	cfg.Jitter = *jitter
	cfg.SwapRate = *swap
	cfg.RematchRate = *rematch
	cfg.NoiseRate = *noise
	cfg.Output = *output
	cfg.Verify = *verify
	cfg.Workers = *workers

	if _, err := testmatches.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("generation failed: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
