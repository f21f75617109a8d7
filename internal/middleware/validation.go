package middleware

import (
	"errors"
	"strconv"
)

// ParseShopID validates a shop ID path parameter.
func ParseShopID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid shop ID")
	}
	return id, nil
}

// ParseLimit parses an optional limit query parameter, clamped to [1, max].
func ParseLimit(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
