// Package quota enforces plan-tier limits on flow contents.
package quota

import (
	"github.com/zapfunnel/flow-service/pkg/types"
)

// Unbounded marks a limit with no cap.
const Unbounded = -1

// Gate answers whether the document can admit another node of a given
// kind. The mutation layer consults it before inserting; everything
// else about plans and billing stays behind this interface.
type Gate interface {
	// CurrentCount returns how many nodes of the kind count against
	// the limit.
	CurrentCount(kind types.NodeKind) int

	// LimitFor returns the cap for the kind, or Unbounded.
	LimitFor(kind types.NodeKind) int
}

// Limits holds the per-tier caps. A zero value means "not gated";
// gated quantities use explicit numbers or Unbounded.
type Limits struct {
	MessageNodes int
	Flows        int
	Contacts     int
}

// trial mirrors the free-tier caps the dashboard advertises.
var trialLimits = Limits{
	MessageNodes: 10,
	Flows:        1,
	Contacts:     20,
}

var unboundedLimits = Limits{
	MessageNodes: Unbounded,
	Flows:        Unbounded,
	Contacts:     Unbounded,
}

// LimitsFor returns the caps for a plan tier. Unknown tiers fall back
// to trial so a malformed session can never widen a quota.
func LimitsFor(tier types.PlanTier) Limits {
	switch tier {
	case types.PlanPro, types.PlanEnterprise:
		return unboundedLimits
	default:
		return trialLimits
	}
}

// documentGate gates node insertions against a single document's
// current contents.
type documentGate struct {
	doc    *types.Document
	limits Limits
}

// ForDocument returns a Gate that counts nodes in doc against the
// given limits. Only message nodes are gated today.
func ForDocument(doc *types.Document, limits Limits) Gate {
	return &documentGate{doc: doc, limits: limits}
}

func (g *documentGate) CurrentCount(kind types.NodeKind) int {
	return g.doc.CountKind(kind)
}

func (g *documentGate) LimitFor(kind types.NodeKind) int {
	if kind == types.KindMessage {
		return g.limits.MessageNodes
	}
	return Unbounded
}

// AllowAll is a Gate that never refuses. Useful in tests and for
// plans without caps.
type AllowAll struct{}

func (AllowAll) CurrentCount(types.NodeKind) int { return 0 }
func (AllowAll) LimitFor(types.NodeKind) int     { return Unbounded }
