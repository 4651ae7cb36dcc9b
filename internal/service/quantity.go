package service

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Quantity is a requested unit count as sent by clients. Numbers and
// numeric strings are accepted. Anything else, including fractions and
// values below one, decodes as a single unit.
type Quantity int

func (q *Quantity) UnmarshalJSON(b []byte) error {
	*q = Quantity(parseQuantity(b))
	return nil
}

func parseQuantity(raw []byte) int {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 1
	}

	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 1
		}
		f = n
	default:
		return 1
	}

	if math.IsNaN(f) || f < 1 || f != math.Trunc(f) {
		return 1
	}
	// Oversized requests stay oversized so the per-line cap rejects them.
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}
