package domain

// Priority orders queued jobs. Higher tiers drain first.
type Priority string

// Priority tiers from lowest to highest.
const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank returns the numeric ordering key for p: low=0 through urgent=3.
// Unknown values rank below low.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityNormal:
		return 1
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	}
	return -1
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p.Rank() >= 0
}

// PriorityFromRank is the inverse of Rank.
func PriorityFromRank(rank int) (Priority, error) {
	switch rank {
	case 0:
		return PriorityLow, nil
	case 1:
		return PriorityNormal, nil
	case 2:
		return PriorityHigh, nil
	case 3:
		return PriorityUrgent, nil
	}
	return "", ErrInvalidPriority
}

// SubscriptionTier is the submitter's plan at enqueue time.
type SubscriptionTier string

// Known subscription tiers.
const (
	TierFree       SubscriptionTier = "free"
	TierBasic      SubscriptionTier = "basic"
	TierPro        SubscriptionTier = "pro"
	TierEnterprise SubscriptionTier = "enterprise"
)

// Priority maps a subscription tier to its queue priority. Unknown tiers
// are treated as free.
func (t SubscriptionTier) Priority() Priority {
	switch t {
	case TierBasic:
		return PriorityNormal
	case TierPro:
		return PriorityHigh
	case TierEnterprise:
		return PriorityUrgent
	}
	return PriorityLow
}

// Valid reports whether t is a known tier.
func (t SubscriptionTier) Valid() bool {
	switch t {
	case TierFree, TierBasic, TierPro, TierEnterprise:
		return true
	}
	return false
}
