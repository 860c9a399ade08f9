package filter

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// toLower and toUpper apply full Unicode case mapping, so one rune may
// become several ("ß" uppercases to "SS"). A Caser keeps state between
// calls and is not shared across goroutines.
func toLower(s string) string {
	return cases.Lower(language.Und).String(s)
}

func toUpper(s string) string {
	return cases.Upper(language.Und).String(s)
}

// LowercaseModule maps every response to its lowercase form.
type LowercaseModule struct {
	textModule
}

// NewLowercase creates a lowercase filter.
func NewLowercase() *LowercaseModule {
	return &LowercaseModule{textModule{filterType: TypeLowercase, fn: toLower}}
}

// UppercaseModule maps every response to its uppercase form.
type UppercaseModule struct {
	textModule
}

// NewUppercase creates an uppercase filter.
func NewUppercase() *UppercaseModule {
	return &UppercaseModule{textModule{filterType: TypeUppercase, fn: toUpper}}
}

var (
	_ Module = (*LowercaseModule)(nil)
	_ Module = (*UppercaseModule)(nil)
)
