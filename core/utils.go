package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Round rounds `x` half away from zero to `places` decimals.
func Round(x float64, places int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	pow := math.Pow(10, float64(places))
	return math.Round(x*pow) / pow
}

// Mean returns the arithmetic mean of `xs`, 0 when empty.
func Mean(xs ...float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// NormalizeAcademicYear rewrites "2023", "2023-24" and "2023-2024" as "2023-24".
// Other values are only trimmed.
func NormalizeAcademicYear(s string) string {
	s = CleanString(s)
	if !academicYearRegex.MatchString(s) {
		return s
	}
	start, err := strconv.Atoi(s[:4])
	if err != nil {
		return s
	}
	end := (start + 1) % 100
	if len(s) > 4 {
		end, _ = strconv.Atoi(s[5:])
		end %= 100
	}
	return fmt.Sprintf("%04d-%02d", start, end)
}
