package filter

// UnanswerableFormatPhrase replaces responses that amount to "unanswerable".
const UnanswerableFormatPhrase = "the answer is: unanswerable."

// UnanswerableFormatModule normalizes bare "unanswerable" answers into the
// phrase expected by the scorer. Punctuation and casing are ignored for the
// comparison only; non-matching responses are returned as they came in.
type UnanswerableFormatModule struct {
	textModule
}

// NewUnanswerableFormat creates an unanswerable-format filter.
func NewUnanswerableFormat() *UnanswerableFormatModule {
	return &UnanswerableFormatModule{textModule{filterType: TypeUnanswerableFormat, fn: formatUnanswerable}}
}

func formatUnanswerable(resp string) string {
	if stripNonWord(toLower(resp)) == "unanswerable" {
		return UnanswerableFormatPhrase
	}
	return resp
}

var _ Module = (*UnanswerableFormatModule)(nil)
