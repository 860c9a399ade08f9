package filter

// Registry type names of the built-in filters.
const (
	TypeLowercase          = "lowercase"
	TypeUppercase          = "uppercase"
	TypeMap                = "map"
	TypeYesNo              = "true_false_to_yes_no"
	TypeUnanswerableFormat = "unanswerable_format"
	TypeFirstClause        = "first_clause"
	TypeUnanswerableMarker = "unanswerable_marker"
	TypeCondition          = "condition"
	TypeScript             = "script"
)

// Dataset-specific aliases kept for configurations written against the
// evaluation task names.
const (
	AliasGQAPretrainLlama     = "gqa_pretrain_llama"
	AliasVizwizVicunaPretrain = "vizwiz_vicuna_pretrain"
)
