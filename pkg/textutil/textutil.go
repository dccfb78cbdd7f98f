package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Clean collapses every run of whitespace (line breaks included) into a single
// space and trims both ends. Clean(Clean(x)) == Clean(x).
func Clean(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// SplitHeadTokens joins the first two whitespace separated tokens as `head` and the
// remaining tokens as `tail`. With fewer than two tokens `head` is the whole (cleaned) text.
//
// ex. "John Smith Mateus [Crystal]" -> ("John Smith", "Mateus [Crystal]")
func SplitHeadTokens(text string) (head, tail string) {
	tokens := strings.Fields(text)
	if len(tokens) < 2 {
		return strings.Join(tokens, " "), ""
	}
	return strings.Join(tokens[:2], " "), strings.Join(tokens[2:], " ")
}

// SplitBracketed splits "Mateus [Crystal]" into ("Mateus", "Crystal"). When the text does
// not contain both brackets it is returned untouched with an empty `inside`.
func SplitBracketed(text string) (before, inside string) {
	open := strings.Index(text, "[")
	if open < 0 || !strings.Contains(text, "]") {
		return text, ""
	}

	rest := text[open+1:]
	if end := strings.Index(rest, "]"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(text[:open]), strings.TrimSpace(rest)
}

// StripSign removes every "+" from a delta field, "+56" -> "56".
func StripSign(text string) string {
	return strings.ReplaceAll(text, "+", "")
}

// SplitMetricPair splits a "value delta" field, "1234 +56" -> ("1234", "+56").
// Missing tokens come back empty. Signs are left alone, see StripSign.
func SplitMetricPair(text string) (primary, delta string) {
	tokens := strings.Fields(text)
	if len(tokens) > 0 {
		primary = tokens[0]
	}
	if len(tokens) > 1 {
		delta = tokens[1]
	}
	return primary, delta
}

// NormalizeName lowercases a name and drops all whitespace so that names can be
// compared regardless of how the page wrapped them.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	return whitespaceRegex.ReplaceAllString(name, "")
}
