package utils

import "fmt"

// ByteCountSI renders a byte count in SI units, e.g. 1500000 -> "1.5 MB".
// Used when logging downloaded media sizes.
func ByteCountSI(b int) string {
	const unit = 1000
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	value, exp := float64(b), -1
	for value >= unit {
		value /= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", value, "kMGTPE"[exp])
}
