// Package utils provides scalar conversions, identifiers, token counting and file helpers.
package utils

import (
	"math"
	"strconv"
	"strings"
)

// AsInt converts a decoded JSON/YAML scalar to an int. Floats must be whole.
func AsInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

// Truthy interprets a decoded scalar as a flag: true, non-zero numbers and
// non-empty strings other than "false"/"0"/"no"/"off" count as set.
func Truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "false", "0", "no", "off":
			return false
		}
		return true
	default:
		return true
	}
}
