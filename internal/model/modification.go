package model

// ModificationKind describes how a rule's amount combines into the final fee.
type ModificationKind string

const (
	// KindFlat adds the amount directly to the fee.
	KindFlat ModificationKind = "flat"
	// KindPercentage adds amount% of the base fee.
	KindPercentage ModificationKind = "percentage"
	// KindMultiplier multiplies the running multiplier by the amount.
	KindMultiplier ModificationKind = "multiplier"
)

// PriceModification is a single rule's contribution to a quote. It lives
// only for the duration of one engine invocation and is never persisted.
type PriceModification struct {
	RuleName    string           `json:"rule_name"`
	Description string           `json:"description"`
	Amount      float64          `json:"amount"`
	Kind        ModificationKind `json:"kind"`
	Priority    int              `json:"priority"`
}

// AppliedModification records what a modification actually contributed to
// the final fee, for the breakdown shown to callers. For multiplier rules
// the applied amount is baseFee * (amount - 1), which is an approximation
// when several multipliers compound. Known display simplification.
type AppliedModification struct {
	RuleName    string           `json:"rule_name"`
	Description string           `json:"description"`
	Kind        ModificationKind `json:"kind"`
	Amount      float64          `json:"amount"`
	Applied     float64          `json:"applied"`
}
