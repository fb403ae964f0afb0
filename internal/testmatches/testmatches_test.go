package testmatches

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jules-maulard/clash-royale-analytics/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.InitWithWriter(io.Discard, "text"); err != nil {
		panic(err)
	}
}

func smallConfig(t *testing.T) *Config {
	cfg := DefaultConfig()
	cfg.Matches = 300
	cfg.Workers = 2
	cfg.NoiseRate = 0.05
	cfg.Output = filepath.Join(t.TempDir(), "matches.ndjson")
	return cfg
}

func TestGenerate(t *testing.T) {
	Convey("Given a generator config", t, func() {
		ctx := context.Background()
		cfg := smallConfig(t)

		Convey("Then the same seed gives the same lines", func() {
			a, err := Generate(ctx, cfg, &Stats{})
			So(err, ShouldBeNil)
			b, err := Generate(ctx, cfg, &Stats{})
			So(err, ShouldBeNil)
			So(a.Lines, ShouldResemble, b.Lines)

			cfg.Seed = 2
			c, err := Generate(ctx, cfg, &Stats{})
			So(err, ShouldBeNil)
			So(c.Lines, ShouldNotResemble, a.Lines)
		})

		Convey("Then the counters add up", func() {
			stats := &Stats{}
			gen, err := Generate(ctx, cfg, stats)
			So(err, ShouldBeNil)
			So(gen.Matches, ShouldHaveLength, cfg.Matches)
			So(stats.Matches, ShouldEqual, cfg.Matches)
			So(stats.Noise, ShouldEqual, 15)
			So(stats.Lines, ShouldEqual, cfg.Matches+stats.Copies+stats.Noise)
			So(len(gen.Lines), ShouldEqual, stats.Lines)
			So(stats.Copies, ShouldBeGreaterThan, 0)
			So(stats.Swapped, ShouldBeLessThanOrEqualTo, stats.Copies)
		})

		Convey("Then copies stay within the jitter and swap the winner with the players", func() {
			cfg.MaxCopies = 4
			cfg.SwapRate = 1
			g := &generator{cfg: cfg, rng: newRand(7)}
			m := Match{Date: "2025-01-01T00:00:00Z", Round: 2, Winner: 0,
				Players: [2]Player{{Tag: "#A", Deck: "0102030405060708"}, {Tag: "#B", Deck: "1112131415161718"}}}
			stats := &Stats{}
			lines, err := g.submissions(m, stats)
			So(err, ShouldBeNil)
			So(len(lines), ShouldBeBetweenOrEqual, 1, 4)
			for _, l := range lines[1:] {
				So(l, ShouldContainSubstring, `"players":[{"utag":"#B"`)
				So(l, ShouldContainSubstring, `"winner":1`)
			}
			So(stats.Swapped, ShouldEqual, len(lines)-1)
		})

		Convey("Then invalid configs are refused", func() {
			cfg.Matches = 0
			_, err := Generate(ctx, cfg, &Stats{})
			So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestRunWithVerify(t *testing.T) {
	Convey("Given a verified generation run", t, func() {
		ctx := context.Background()
		cfg := smallConfig(t)
		cfg.Verify = true

		stats, err := Run(ctx, cfg)

		Convey("Then the clean stage recovers every match once", func() {
			So(err, ShouldBeNil)
			So(stats.Matches, ShouldEqual, cfg.Matches)

			data, err := os.ReadFile(cfg.Output)
			So(err, ShouldBeNil)
			So(strings.Count(string(data), "\n"), ShouldEqual, stats.Lines)
		})
	})

	Convey("Given a jitter larger than the dedup threshold", t, func() {
		cfg := smallConfig(t)
		cfg.Verify = true
		cfg.Jitter = 10 * time.Second

		_, err := Run(context.Background(), cfg)

		Convey("Then verification refuses to run", func() {
			So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
		})
	})
}
