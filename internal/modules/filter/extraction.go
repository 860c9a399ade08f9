package filter

import "strings"

// Literals used by the dataset-specific extraction filters.
const (
	clauseSeparator = ", "
	unanswerableTag = "Unanswerable"

	// UnanswerableMarkerReplacement is emitted exactly, trailing quote included.
	UnanswerableMarkerReplacement = `Unanswerable"`
)

// FirstClauseModule isolates the direct answer from a comma-separated
// explanation, e.g. "yes, he is wearing a wetsuit" becomes "yes".
//
// Responses containing ", " are cut to the first clause verbatim. Responses
// without it are lowercased and stripped of punctuation instead, which turns
// `computer"` into "computer".
type FirstClauseModule struct {
	textModule
}

// NewFirstClause creates a first-clause extraction filter.
func NewFirstClause() *FirstClauseModule {
	return &FirstClauseModule{textModule{filterType: TypeFirstClause, fn: firstClause}}
}

func firstClause(resp string) string {
	if head, _, found := strings.Cut(resp, clauseSeparator); found {
		return head
	}
	return stripNonWord(toLower(resp))
}

// UnanswerableMarkerModule replaces any response mentioning "Unanswerable"
// (case-sensitive, anywhere in the text) with UnanswerableMarkerReplacement.
type UnanswerableMarkerModule struct {
	textModule
}

// NewUnanswerableMarker creates an unanswerable-marker detection filter.
func NewUnanswerableMarker() *UnanswerableMarkerModule {
	return &UnanswerableMarkerModule{textModule{filterType: TypeUnanswerableMarker, fn: markUnanswerable}}
}

func markUnanswerable(resp string) string {
	if strings.Contains(resp, unanswerableTag) {
		return UnanswerableMarkerReplacement
	}
	return resp
}

var (
	_ Module = (*FirstClauseModule)(nil)
	_ Module = (*UnanswerableMarkerModule)(nil)
)
