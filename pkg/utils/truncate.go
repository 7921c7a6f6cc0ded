package utils

// MoreIndicator is appended to truncated text so readers know the full
// body is available in the audit log.
const MoreIndicator = "… (more available)"

// Truncate bounds s to max runes, appending the more-available indicator
// when anything was cut
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + MoreIndicator
}
