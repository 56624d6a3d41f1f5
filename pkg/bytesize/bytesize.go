// Package bytesize formats byte counts as human-readable strings using
// binary (1024) units.
package bytesize

import (
	"fmt"
	"strconv"
)

// Size represents a byte size as int64.
type Size int64

// Common size constants using binary (1024) base.
const (
	B  Size = 1
	KB Size = 1024
	MB Size = 1024 * KB
	GB Size = 1024 * MB
	TB Size = 1024 * GB
)

// Format returns a human-readable representation of n bytes, using the
// largest unit that keeps the value at or above 1. Values below 10 in
// the chosen unit keep one decimal place.
func Format(n uint64) string {
	size := Size(n)
	switch {
	case size >= TB:
		return format(size, TB, "TiB")
	case size >= GB:
		return format(size, GB, "GiB")
	case size >= MB:
		return format(size, MB, "MiB")
	case size >= KB:
		return format(size, KB, "KiB")
	default:
		return strconv.FormatUint(n, 10) + "B"
	}
}

func format(size, unit Size, suffix string) string {
	v := float64(size) / float64(unit)
	if v < 10 {
		return fmt.Sprintf("%.1f%s", v, suffix)
	}
	return fmt.Sprintf("%.0f%s", v, suffix)
}
