package schema

import (
	"strings"
	"unicode"
)

// ValidateVersionID ensures a version id is non-empty, untrimmed, and free of control characters.
func ValidateVersionID(versionID VersionID) error {
	raw := string(versionID)
	if raw == "" || strings.TrimSpace(raw) != raw {
		return ErrInvalidVersion
	}
	for _, r := range raw {
		if unicode.IsControl(r) || unicode.IsSpace(r) || r == '/' {
			return ErrInvalidVersion
		}
	}
	return nil
}

// NormalizeTabPath trims a router path and ensures it is absolute without a trailing slash.
func NormalizeTabPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", ErrInvalidPath
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return "", ErrInvalidPath
		}
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	if len(trimmed) > 1 {
		trimmed = strings.TrimRight(trimmed, "/")
		if trimmed == "" {
			trimmed = "/"
		}
	}
	return trimmed, nil
}

// NormalizeTabType validates an editor kind. Empty defaults to code.
func NormalizeTabType(value TabType) (TabType, error) {
	trimmed := TabType(strings.ToLower(strings.TrimSpace(string(value))))
	if trimmed == "" {
		return TabTypeCode, nil
	}
	for _, known := range tabTypes {
		if known == trimmed {
			return trimmed, nil
		}
	}
	return "", ErrInvalidTabType
}
