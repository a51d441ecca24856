package helpers

import (
	"errors"
	"strings"
)

// GetSplitPart returns the index-th part of target split by separate
func GetSplitPart(target string, separate string, index int) (string, error) {
	parts := strings.Split(target, separate)
	if index >= len(parts) {
		return "", errors.New("index out of range")
	}
	return parts[index], nil
}

// ItemIDFromPath extracts the path segment following marker ("/dp/B0XXXX/..." -> "B0XXXX")
func ItemIDFromPath(link, marker string) (string, error) {
	base := strings.Split(link, "?")[0]
	tail, err := GetSplitPart(base, marker, 1)
	if err != nil {
		return "", err
	}
	return GetSplitPart(tail, "/", 0)
}

// Truncate shortens s to maxLen runes, appending an ellipsis when cut
func Truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
