package model

import "time"

// ThirdPartyQuote is the snapshot of an external logistics provider's
// delivery quote, threaded into the QuoteResult when the third-party rule
// ran. The provider's quote id is the token to book against.
type ThirdPartyQuote struct {
	QuoteID    string  `json:"quote_id"`
	Provider   string  `json:"provider"`
	Price      float64 `json:"price"`
	ETAMinutes int     `json:"eta_minutes"`
}

// QuoteResult is the time-boxed output of one fee calculation. Expiry is
// advisory: the engine neither tracks nor revokes issued quotes, so callers
// must check ExpiresAt before booking against one.
type QuoteResult struct {
	QuoteID   string    `json:"quote_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`

	BaseFee    float64 `json:"base_fee"`
	FinalFee   float64 `json:"final_fee"`
	Multiplier float64 `json:"multiplier"`

	SurgeReason     string                `json:"surge_reason,omitempty"`
	ThirdPartyQuote *ThirdPartyQuote      `json:"third_party_quote,omitempty"`
	Breakdown       []AppliedModification `json:"breakdown"`
}

// Expired reports whether the quote is stale at the given instant.
func (q QuoteResult) Expired(now time.Time) bool {
	return now.After(q.ExpiresAt)
}
