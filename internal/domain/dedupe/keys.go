package dedupe

import (
	"strconv"
	"time"

	"github.com/jules-maulard/clash-royale-analytics/internal/domain/model"
)

// shiftedMarker tags the half-offset bucket so both keyings never collide.
const shiftedMarker = "S"

// CanonicalKey identifies a match independently of player order:
// the two tags sorted, then the round, joined with '|'.
func CanonicalKey(rec model.MatchRecord) string {
	a, b := rec.Players[0].Tag, rec.Players[1].Tag
	if b < a {
		a, b = b, a
	}
	return a + "|" + b + "|" + strconv.Itoa(rec.Round)
}

// WindowKey places a canonical match key in a time bucket.
type WindowKey struct {
	Canonical string
	Bucket    int64
	Shifted   bool
}

func (k WindowKey) String() string {
	if k.Shifted {
		return k.Canonical + "|" + shiftedMarker + strconv.FormatInt(k.Bucket, 10)
	}
	return k.Canonical + "|" + strconv.FormatInt(k.Bucket, 10)
}

// WindowKeys returns the primary bucket floor(ms/window) and the shifted
// bucket floor((ms-window/2)/window). Two timestamps closer than window/2
// always share at least one of them.
func WindowKeys(rec model.MatchRecord, window time.Duration) [2]WindowKey {
	canonical := CanonicalKey(rec)
	ms := rec.Date.UnixMilli()
	w := window.Milliseconds()
	return [2]WindowKey{
		{Canonical: canonical, Bucket: floorDiv(ms, w)},
		{Canonical: canonical, Bucket: floorDiv(ms-w/2, w), Shifted: true},
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
