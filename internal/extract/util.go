package extract

import "strconv"

// parseUnitFloat parses a metadata value expected to hold a value in
// [0,1], clamping out-of-range results rather than rejecting them.
func parseUnitFloat(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v, nil
}
