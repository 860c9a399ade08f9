package filter

import "regexp"

// nonWordPattern matches any rune that is not a letter, digit, underscore or
// whitespace. Letters and digits are Unicode classes, and whitespace includes
// the vertical tab, the ASCII separators 0x1c-0x1f and NEL so the class agrees
// with a Unicode-aware [^\w\s].
var nonWordPattern = regexp.MustCompile(`[^\p{L}\p{N}_\p{Z}\t\n\v\f\r\x{1c}-\x{1f}\x{85}]`)

// stripNonWord removes every character matched by nonWordPattern.
func stripNonWord(s string) string {
	return nonWordPattern.ReplaceAllString(s, "")
}
