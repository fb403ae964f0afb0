package dedupe

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStrategy is returned for a strategy name that is not recognised.
var ErrUnknownStrategy = errors.New("unknown dedup strategy")

// ParseStrategy maps a configuration value to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategySweep:
		return StrategySweep, nil
	case StrategyWindowed:
		return StrategyWindowed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}
