package models

// Tier represents a subscription rank gating feature access
type Tier string

const (
	TierFree  Tier = "free"
	TierPro   Tier = "pro"
	TierElite Tier = "elite"
)

// tierRanks orders the known tiers. Unknown tiers rank with free, never above.
var tierRanks = map[Tier]int{
	TierFree:  1,
	TierPro:   2,
	TierElite: 3,
}

// Rank returns the numeric rank of the tier. Unknown tiers rank 1.
func (t Tier) Rank() int {
	if rank, ok := tierRanks[t]; ok {
		return rank
	}
	return 1
}

// Permits reports whether a user at tier t may use a feature requiring the given tier.
// Pure and deterministic: permission holds iff rank(t) >= rank(required).
func (t Tier) Permits(required Tier) bool {
	return t.Rank() >= required.Rank()
}

// IsKnown reports whether the tier is one of the defined ranks
func (t Tier) IsKnown() bool {
	_, ok := tierRanks[t]
	return ok
}
