package util

import (
	"regexp"
	"strings"
)

var (
	reSpaces    = regexp.MustCompile(`\s+`)
	reKeyJoiner = regexp.MustCompile(`[\s\-./]+`)
	reKeyStrip  = regexp.MustCompile(`[^a-z0-9_]`)
)

// NormalizeSpaces collapses runs of whitespace (including NBSP) to one space.
func NormalizeSpaces(input string) string {
	s := strings.ReplaceAll(input, "\u00a0", " ")
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

// HeaderKey folds a column header to a lookup key: "Date of Visit" and
// "date_of_visit" both become "date_of_visit".
func HeaderKey(input string) string {
	s := strings.ToLower(NormalizeSpaces(strings.TrimPrefix(input, "\ufeff")))
	s = reKeyJoiner.ReplaceAllString(s, "_")
	s = reKeyStrip.ReplaceAllString(s, "")
	return strings.Trim(s, "_")
}

// SanitizeFileName makes a message id or label safe to use in a path.
func SanitizeFileName(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_", "\"", "_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func StringPtr(v string) *string {
	return &v
}
