package scoring

import (
	"math"

	"github.com/jules-maulard/clash-royale-analytics/internal/domain/model"
)

// Calibration summarises how well expected scores track observed counts.
type Calibration struct {
	N         int     `yaml:"n"`
	Pearson   float64 `yaml:"pearson"`
	Slope     float64 `yaml:"slope"`
	Intercept float64 `yaml:"intercept"`
	// Defined is false when either series has no variance.
	Defined bool `yaml:"defined"`
}

// Calibrate computes the Pearson correlation between expected score and
// observed count, and the least-squares line observed = slope*expected + intercept.
func Calibrate(records []model.PredictionRecord) Calibration {
	c := Calibration{N: len(records)}
	if c.N < 2 {
		return c
	}
	n := float64(c.N)
	var sumX, sumY float64
	for _, r := range records {
		sumX += r.ExpectedScore
		sumY += float64(r.ObservedCount)
	}
	meanX, meanY := sumX/n, sumY/n

	var sxx, syy, sxy float64
	for _, r := range records {
		dx := r.ExpectedScore - meanX
		dy := float64(r.ObservedCount) - meanY
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	if sxx == 0 || syy == 0 {
		return c
	}
	c.Defined = true
	c.Pearson = sxy / math.Sqrt(sxx*syy)
	c.Slope = sxy / sxx
	c.Intercept = meanY - c.Slope*meanX
	return c
}
