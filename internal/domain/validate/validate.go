// Package validate turns raw match lines into MatchRecords and classifies
// the lines it has to reject.
package validate

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/jules-maulard/clash-royale-analytics/internal/domain/archetype"
	"github.com/jules-maulard/clash-royale-analytics/internal/domain/model"
)

// Validator parses match lines. It holds only compiled paths and is safe for concurrent use.
type Validator struct {
	date    jp.Expr
	round   jp.Expr
	winner  jp.Expr
	players jp.Expr
	tag     []jp.Expr
	deck    jp.Expr
}

// New returns a Validator. Player tags are read from "utag" and then "tag".
func New() *Validator {
	return &Validator{
		date:    jp.MustParseString("$.date"),
		round:   jp.MustParseString("$.round"),
		winner:  jp.MustParseString("$.winner"),
		players: jp.MustParseString("$.players"),
		tag:     []jp.Expr{jp.MustParseString("$.utag"), jp.MustParseString("$.tag")},
		deck:    jp.MustParseString("$.deck"),
	}
}

// Parse validates one line. The returned record keeps line as its Raw payload.
func (v *Validator) Parse(line string) (model.MatchRecord, error) {
	var rec model.MatchRecord
	if strings.TrimSpace(line) == "" {
		return rec, fmt.Errorf("%w: empty line", ErrMalformed)
	}
	doc, err := oj.ParseString(line)
	if err != nil {
		return rec, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, ok := doc.(map[string]any); !ok {
		return rec, fmt.Errorf("%w: not an object", ErrMalformed)
	}
	rec.Raw = line

	if rec.Date, err = v.parseDate(doc); err != nil {
		return rec, err
	}
	if rec.Round, err = intField(doc, v.round, "round"); err != nil {
		return rec, err
	}
	if rec.Winner, err = intField(doc, v.winner, "winner"); err != nil {
		return rec, err
	}
	if rec.Winner < 0 || rec.Winner >= model.PlayerCount {
		return rec, fmt.Errorf("%w: winner %d", ErrInvalidField, rec.Winner)
	}

	players, ok := v.players.First(doc).([]any)
	if !ok || len(players) != model.PlayerCount {
		return rec, fmt.Errorf("%w: players must be an array of %d", ErrMissingField, model.PlayerCount)
	}
	for i, raw := range players {
		p, err := v.parsePlayer(raw)
		if err != nil {
			return rec, fmt.Errorf("player %d: %w", i, err)
		}
		rec.Players[i] = p
	}
	return rec, nil
}

func (v *Validator) parseDate(doc any) (time.Time, error) {
	raw := v.date.First(doc)
	if raw == nil {
		return time.Time{}, fmt.Errorf("%w: date", ErrMissingField)
	}
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: date is %T", ErrInvalidField, raw)
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	return ts, nil
}

func (v *Validator) parsePlayer(raw any) (model.Player, error) {
	var p model.Player
	obj, ok := raw.(map[string]any)
	if !ok {
		return p, fmt.Errorf("%w: player is not an object", ErrMissingField)
	}
	for _, x := range v.tag {
		if t, ok := x.First(obj).(string); ok && t != "" {
			p.Tag = t
			break
		}
	}
	if p.Tag == "" {
		return p, fmt.Errorf("%w: tag", ErrMissingField)
	}

	deck := v.deck.First(obj)
	if deck == nil {
		return p, fmt.Errorf("%w: deck", ErrMissingField)
	}
	s, ok := deck.(string)
	if !ok {
		return p, fmt.Errorf("%w: deck is %T", ErrInvalidField, deck)
	}
	if _, err := archetype.Cards(s); err != nil {
		return p, fmt.Errorf("%w: %v", ErrDeckCardinality, err)
	}
	p.Deck = strings.ToLower(s)
	return p, nil
}

func intField(doc any, x jp.Expr, name string) (int, error) {
	switch n := x.First(doc).(type) {
	case nil:
		return 0, fmt.Errorf("%w: %s", ErrMissingField, name)
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: %s %v is not whole", ErrInvalidField, name, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: %s is %T", ErrInvalidField, name, n)
	}
}
