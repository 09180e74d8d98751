package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var decimalPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// CompactAmount renders a dashboard quantity field for display. The inputs are
// decimal-as-text ("1500", "2500.5") and are never used arithmetically, so
// anything non-numeric passes through untouched.
func CompactAmount(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || value == "null" {
		return "0"
	}
	if !decimalPattern.MatchString(value) {
		return value
	}

	num, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return value
	}

	abs := num
	if abs < 0 {
		abs = -abs
	}

	if abs < 1_000 {
		if num == float64(int64(num)) {
			return strconv.FormatInt(int64(num), 10)
		}
		return strconv.FormatFloat(num, 'f', -1, 64)
	}

	if abs >= 1_000_000 {
		return fmt.Sprintf("%.1fM", num/1_000_000)
	}
	return fmt.Sprintf("%dk", int64(num/1_000))
}
