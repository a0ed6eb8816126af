package paramstore

import (
	"strings"
)

// reservedPrefixes are name prefixes the parameter store keeps for itself
// (case-insensitive).
var reservedPrefixes = []string{"aws", "ssm"}

// SanitizeName maps an arbitrary label to a token that is safe to use as a
// single path segment. Characters outside [A-Za-z0-9_.-] collapse into a
// single '-', leading and trailing separators are dropped, and labels that
// collide with a reserved prefix get a "p-" prefix.
func SanitizeName(label string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.TrimSpace(label) {
		if allowedRune(r) {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}
	out := strings.Trim(b.String(), "-.")
	if out == "" {
		return "default"
	}
	lower := strings.ToLower(out)
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(lower, p) {
			return "p-" + out
		}
	}
	return out
}

func allowedRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_', r == '.', r == '-':
		return true
	}
	return false
}

// JoinPath builds a hierarchical path from segments, guaranteeing a single
// leading slash and no empty segments.
func JoinPath(segments ...string) string {
	var b strings.Builder
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(s)
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}
