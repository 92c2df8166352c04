package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDuration accepts everything time.ParseDuration does plus whole days
// ("90d") and weeks ("2w"), which retention settings tend to be written in.
func ParseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	unit := time.Duration(0)
	switch {
	case strings.HasSuffix(s, "d"):
		unit = 24 * time.Hour
	case strings.HasSuffix(s, "w"):
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}
	return time.Duration(n) * unit, nil
}
