package types

// PlanTier is the billing tier attached to a dashboard session. The
// flow service only consults it to derive quota limits; billing itself
// lives elsewhere.
type PlanTier string

const (
	PlanTrial      PlanTier = "trial"
	PlanPro        PlanTier = "pro"
	PlanEnterprise PlanTier = "enterprise"
)

// Valid reports whether t is a known tier. Unknown tiers are treated
// as trial by the quota layer rather than rejected.
func (t PlanTier) Valid() bool {
	switch t {
	case PlanTrial, PlanPro, PlanEnterprise:
		return true
	}
	return false
}
