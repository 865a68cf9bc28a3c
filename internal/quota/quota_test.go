package quota

import (
	"testing"

	"github.com/zapfunnel/flow-service/pkg/types"
)

func TestLimitsFor(t *testing.T) {
	tests := []struct {
		tier types.PlanTier
		want Limits
	}{
		{types.PlanTrial, trialLimits},
		{types.PlanPro, unboundedLimits},
		{types.PlanEnterprise, unboundedLimits},
		{types.PlanTier("gold"), trialLimits}, // unknown narrows, never widens
		{types.PlanTier(""), trialLimits},
	}
	for _, tt := range tests {
		if got := LimitsFor(tt.tier); got != tt.want {
			t.Errorf("LimitsFor(%q) = %+v, want %+v", tt.tier, got, tt.want)
		}
	}
}

func TestForDocumentGatesOnlyMessages(t *testing.T) {
	doc := &types.Document{
		Nodes: []types.Node{
			{ID: "s", Kind: types.KindStart},
			{ID: "m1", Kind: types.KindMessage},
			{ID: "m2", Kind: types.KindMessage},
			{ID: "e", Kind: types.KindEnd},
		},
	}
	gate := ForDocument(doc, trialLimits)

	if got := gate.CurrentCount(types.KindMessage); got != 2 {
		t.Errorf("CurrentCount(message) = %d, want 2", got)
	}
	if got := gate.LimitFor(types.KindMessage); got != 10 {
		t.Errorf("LimitFor(message) = %d, want 10", got)
	}
	for _, kind := range []types.NodeKind{types.KindStart, types.KindChoice, types.KindEnd, types.KindAI} {
		if got := gate.LimitFor(kind); got != Unbounded {
			t.Errorf("LimitFor(%s) = %d, want unbounded", kind, got)
		}
	}
}

func TestUsageThresholds(t *testing.T) {
	tests := []struct {
		name      string
		used      int
		limit     int
		percent   int
		nearLimit bool
		atLimit   bool
	}{
		{"empty", 0, 10, 0, false, false},
		{"midway", 5, 10, 50, false, false},
		{"near", 8, 10, 80, true, false},
		{"just under", 9, 10, 90, true, false},
		{"at", 10, 10, 100, false, true},
		{"over", 12, 10, 100, false, true},
		{"unbounded", 500, Unbounded, 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percent(tt.used, tt.limit); got != tt.percent {
				t.Errorf("Percent = %d, want %d", got, tt.percent)
			}
			if got := NearLimit(tt.used, tt.limit); got != tt.nearLimit {
				t.Errorf("NearLimit = %v, want %v", got, tt.nearLimit)
			}
			if got := AtLimit(tt.used, tt.limit); got != tt.atLimit {
				t.Errorf("AtLimit = %v, want %v", got, tt.atLimit)
			}
		})
	}
}

func TestTakeSnapshot(t *testing.T) {
	docs := []*types.Document{
		{Nodes: []types.Node{
			{Kind: types.KindStart},
			{Kind: types.KindMessage},
			{Kind: types.KindMessage},
		}},
		{Nodes: []types.Node{
			{Kind: types.KindStart},
			{Kind: types.KindMessage},
		}},
	}
	snap := Take(docs)
	if snap.Flows != 2 {
		t.Errorf("Flows = %d, want 2", snap.Flows)
	}
	if snap.MessageNodes != 3 {
		t.Errorf("MessageNodes = %d, want 3", snap.MessageNodes)
	}
}
