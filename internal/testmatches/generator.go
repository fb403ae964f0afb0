package testmatches

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jules-maulard/clash-royale-analytics/internal/domain/archetype"
	"github.com/jules-maulard/clash-royale-analytics/pkg/logger"
)

// Card codes are drawn from 0x01..cardPoolSize.
const cardPoolSize = 120

// Rematches start at least this long after the original match.
const (
	rematchMinGap = time.Minute
	rematchSpread = 10 * time.Minute
	matchSpacing  = 30 * time.Second
)

var noiseLines = []string{
	`{"date":`,
	`not json at all`,
	`{"date":"yesterday","round":1,"winner":0,"players":[]}`,
	`{"date":"2025-01-01T00:00:00Z","round":1,"winner":0,"players":[{"utag":"#X","deck":"0101010101010101"},{"utag":"#Y","deck":"0102030405060708"}]}`,
	`[]`,
}

// Generated is a generation result. Lines is in submission order.
type Generated struct {
	Matches []Match
	Lines   []string
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

type generator struct {
	cfg  *Config
	rng  *rand.Rand
	meta []string
}

// Generate builds the submissions for cfg. The same config always produces
// the same lines.
func Generate(ctx context.Context, cfg *Config, stats *Stats) (*Generated, error) {
	if cfg.Matches < 1 {
		return nil, fmt.Errorf("%w: matches must be positive", ErrInvalidConfig)
	}
	if cfg.Jitter < 0 {
		return nil, fmt.Errorf("%w: jitter must not be negative", ErrInvalidConfig)
	}
	g := &generator{cfg: cfg, rng: newRand(cfg.Seed)}
	for i := 0; i < cfg.MetaDecks; i++ {
		g.meta = append(g.meta, g.randomDeck())
	}

	logger.Get().Info(ctx, "generating matches",
		logger.Int("matches", cfg.Matches),
		logger.Int64("seed", cfg.Seed),
	)

	out := &Generated{}
	for i := 0; len(out.Matches) < cfg.Matches; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := g.match(cfg.Start.Add(time.Duration(i) * matchSpacing))
		if err != nil {
			return nil, err
		}
		out.Matches = append(out.Matches, m)

		if len(out.Matches) < cfg.Matches && g.rng.Float64() < cfg.RematchRate {
			out.Matches = append(out.Matches, g.rematch(m))
			stats.Rematches++
		}
	}

	for _, m := range out.Matches {
		lines, err := g.submissions(m, stats)
		if err != nil {
			return nil, err
		}
		out.Lines = append(out.Lines, lines...)
	}
	noise := int(float64(len(out.Matches)) * cfg.NoiseRate)
	for i := 0; i < noise; i++ {
		out.Lines = append(out.Lines, noiseLines[g.rng.Intn(len(noiseLines))])
	}
	g.rng.Shuffle(len(out.Lines), func(i, j int) { out.Lines[i], out.Lines[j] = out.Lines[j], out.Lines[i] })

	stats.Matches = len(out.Matches)
	stats.Noise = noise
	stats.Lines = len(out.Lines)
	logger.Get().Info(ctx, "generated matches",
		logger.Int("matches", stats.Matches),
		logger.Int("lines", stats.Lines),
	)
	return out, nil
}

func (g *generator) tag() (string, error) {
	id, err := uuid.NewRandomFromReader(g.rng)
	if err != nil {
		return "", err
	}
	return "#" + strings.ToUpper(id.String()[:8]), nil
}

func (g *generator) randomDeck() string {
	var b strings.Builder
	for _, c := range g.rng.Perm(cardPoolSize)[:archetype.DeckSize] {
		fmt.Fprintf(&b, "%02x", c+1)
	}
	return b.String()
}

func (g *generator) deck() string {
	if len(g.meta) > 0 && g.rng.Float64() < g.cfg.MetaShare {
		return g.meta[g.rng.Intn(len(g.meta))]
	}
	return g.randomDeck()
}

func (g *generator) match(at time.Time) (Match, error) {
	var m Match
	for i := range m.Players {
		tag, err := g.tag()
		if err != nil {
			return Match{}, err
		}
		m.Players[i] = Player{Tag: tag, Deck: g.deck()}
	}
	m.Date = at.Format(time.RFC3339Nano)
	m.Round = 1 + g.rng.Intn(5)
	m.Winner = g.rng.Intn(2)
	return m, nil
}

// rematch replays m between the same players and round, far enough later
// to count as a different match.
func (g *generator) rematch(m Match) Match {
	at, _ := time.Parse(time.RFC3339Nano, m.Date)
	gap := rematchMinGap + time.Duration(g.rng.Int63n(int64(rematchSpread)))
	r := m
	r.Date = at.Add(gap).Format(time.RFC3339Nano)
	r.Winner = g.rng.Intn(2)
	for i := range r.Players {
		r.Players[i].Deck = g.deck()
	}
	return r
}

// submissions renders 1..MaxCopies lines describing m.
func (g *generator) submissions(m Match, stats *Stats) ([]string, error) {
	copies := 1
	if g.cfg.MaxCopies > 1 {
		copies += g.rng.Intn(g.cfg.MaxCopies)
	}
	at, _ := time.Parse(time.RFC3339Nano, m.Date)

	lines := make([]string, 0, copies)
	for i := 0; i < copies; i++ {
		c := m
		if i > 0 {
			stats.Copies++
			if g.cfg.Jitter > 0 {
				c.Date = at.Add(time.Duration(g.rng.Int63n(int64(g.cfg.Jitter) + 1))).Format(time.RFC3339Nano)
			}
			if g.rng.Float64() < g.cfg.SwapRate {
				c.Players[0], c.Players[1] = c.Players[1], c.Players[0]
				c.Winner = 1 - c.Winner
				stats.Swapped++
			}
		}
		line, err := marshalMatch(c)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}
