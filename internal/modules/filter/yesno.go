package filter

// YesNoModule rewrites "true"/"false" (any casing) to "yes"/"no".
// Every other response passes through untouched, casing included.
type YesNoModule struct {
	textModule
}

// NewYesNo creates a true/false to yes/no filter.
func NewYesNo() *YesNoModule {
	return &YesNoModule{textModule{filterType: TypeYesNo, fn: trueFalseToYesNo}}
}

func trueFalseToYesNo(resp string) string {
	switch toLower(resp) {
	case "true":
		return "yes"
	case "false":
		return "no"
	default:
		return resp
	}
}

var _ Module = (*YesNoModule)(nil)
