package otel

import (
	"fmt"
	"strconv"
)

func parseRatio(raw string) (float64, error) {
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse sample ratio: %w", err)
	}
	if ratio < 0 || ratio > 1 {
		return 0, fmt.Errorf("sample ratio %v out of range [0,1]", ratio)
	}
	return ratio, nil
}
