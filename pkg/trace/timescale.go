package trace

import (
	"strconv"
	"strings"
)

// unitScale gives the number of picoseconds in one unit of the given
// $timescale keyword.
var unitScale = map[string]float64{
	"fs": 1e-3,
	"ps": 1,
	"ns": 1e3,
	"us": 1e6,
	"ms": 1e9,
	"s":  1e12,
}

// parseTimescale splits a token like "1ns" or two tokens "1", "ns"
// into a numeric multiplier expressed in picoseconds per raw tick,
// relative to the requested external scale (also in ps-per-unit,
// default 1 == ps). An empty requestedUnit defaults to "ps".
func parseTimescale(tokens []string, requestedUnit string) (float64, error) {
	joined := strings.Join(tokens, "")
	joined = strings.TrimSpace(joined)

	i := 0
	for i < len(joined) && (joined[i] == '.' || (joined[i] >= '0' && joined[i] <= '9')) {
		i++
	}
	numStr := joined[:i]
	unit := strings.ToLower(strings.TrimSpace(joined[i:]))
	if numStr == "" {
		numStr = "1"
	}
	n, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, &ParseError{Msg: "bad $timescale value " + joined}
	}

	scale, ok := unitScale[unit]
	if !ok {
		return 0, &UnknownTimescale{Unit: unit}
	}

	if requestedUnit == "" {
		requestedUnit = "ps"
	}
	reqScale, ok := unitScale[strings.ToLower(requestedUnit)]
	if !ok {
		return 0, &UnknownTimescale{Unit: requestedUnit}
	}

	return n * scale / reqScale, nil
}
