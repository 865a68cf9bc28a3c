package quota

import (
	"github.com/zapfunnel/flow-service/pkg/types"
)

// Snapshot is a derived view of quota-relevant usage. It is computed
// on demand from the documents themselves, never cached, so it cannot
// drift from the source of truth.
type Snapshot struct {
	Flows        int `json:"flows"`
	MessageNodes int `json:"message_nodes"`
}

// Take computes usage across a set of documents.
func Take(docs []*types.Document) Snapshot {
	var s Snapshot
	s.Flows = len(docs)
	for _, d := range docs {
		s.MessageNodes += d.CountKind(types.KindMessage)
	}
	return s
}

// Percent returns used/limit as a whole percentage clamped to [0,100].
// Unbounded limits always report 0.
func Percent(used, limit int) int {
	if limit <= 0 {
		return 0
	}
	p := used * 100 / limit
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// NearLimit reports whether usage has crossed the 80% nudge threshold
// without reaching the cap.
func NearLimit(used, limit int) bool {
	p := Percent(used, limit)
	return p >= 80 && p < 100
}

// AtLimit reports whether usage has reached or exceeded the cap.
// Unbounded limits are never at their cap.
func AtLimit(used, limit int) bool {
	return limit >= 0 && used >= limit
}
