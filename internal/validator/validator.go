// Package validator runs the structural checks a flow must pass before
// it can be published: exactly one start node, no dangling edges, no
// self-loops. Checks never mutate the document.
package validator

import (
	"fmt"

	"github.com/zapfunnel/flow-service/pkg/types"
)

// Severity grades an issue. Errors block publishing, warnings do not.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Issue codes.
const (
	CodeInvalidKind   = "invalid_kind"
	CodeMissingStart  = "missing_start"
	CodeMultipleStart = "multiple_start"
	CodeDanglingEdge  = "dangling_edge"
	CodeSelfLoop      = "self_loop"
	CodeUnreachable   = "unreachable_node"
	CodeNoOutgoing    = "no_outgoing"
)

// Issue is one finding against a document.
type Issue struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	NodeID   string   `json:"nodeId,omitempty"`
	EdgeID   string   `json:"edgeId,omitempty"`
}

// Result holds the findings of a validation pass.
type Result struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues,omitempty"`
}

// Errors returns only the error-severity issues.
func (r *Result) Errors() []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Severity == SeverityError {
			out = append(out, is)
		}
	}
	return out
}

// Validate runs every check over the document. Valid is false only
// when at least one error-severity issue is present; a document that
// carries only warnings still validates.
func Validate(doc *types.Document) *Result {
	r := &Result{Valid: true}

	checkKinds(doc, r)
	checkStart(doc, r)
	checkEdges(doc, r)
	checkReachability(doc, r)

	for _, is := range r.Issues {
		if is.Severity == SeverityError {
			r.Valid = false
			break
		}
	}
	return r
}

// checkKinds rejects nodes outside the closed kind set. The runtime
// has no behavior for an unknown kind, so this is an error.
func checkKinds(doc *types.Document, r *Result) {
	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		if !n.Kind.Valid() {
			r.Issues = append(r.Issues, Issue{
				Code:     CodeInvalidKind,
				Severity: SeverityError,
				Message:  fmt.Sprintf("node has unknown kind %q", n.Kind),
				NodeID:   n.ID,
			})
		}
	}
}

func checkStart(doc *types.Document, r *Result) {
	var starts []string
	for i := range doc.Nodes {
		if doc.Nodes[i].Kind == types.KindStart {
			starts = append(starts, doc.Nodes[i].ID)
		}
	}
	switch {
	case len(starts) == 0:
		r.Issues = append(r.Issues, Issue{
			Code:     CodeMissingStart,
			Severity: SeverityWarning,
			Message:  "flow has no start node; the conversation cannot begin",
		})
	case len(starts) > 1:
		for _, id := range starts[1:] {
			r.Issues = append(r.Issues, Issue{
				Code:     CodeMultipleStart,
				Severity: SeverityWarning,
				Message:  "flow has more than one start node; only the first is used",
				NodeID:   id,
			})
		}
	}
}

func checkEdges(doc *types.Document, r *Result) {
	for i := range doc.Edges {
		e := &doc.Edges[i]
		if doc.FindNode(e.From) == nil {
			r.Issues = append(r.Issues, Issue{
				Code:     CodeDanglingEdge,
				Severity: SeverityError,
				Message:  fmt.Sprintf("edge references missing source node %q", e.From),
				EdgeID:   e.ID,
			})
		}
		if doc.FindNode(e.To) == nil {
			r.Issues = append(r.Issues, Issue{
				Code:     CodeDanglingEdge,
				Severity: SeverityError,
				Message:  fmt.Sprintf("edge references missing target node %q", e.To),
				EdgeID:   e.ID,
			})
		}
		if e.From == e.To && e.From != "" {
			r.Issues = append(r.Issues, Issue{
				Code:     CodeSelfLoop,
				Severity: SeverityWarning,
				Message:  "edge connects a node to itself",
				EdgeID:   e.ID,
			})
		}
	}
}

// checkReachability flags nodes the conversation can never visit and
// non-terminal nodes with nowhere to go. Both are warnings: the editor
// allows work-in-progress graphs.
func checkReachability(doc *types.Document, r *Result) {
	start := doc.StartNode()
	if start == nil {
		return
	}
	reached := map[string]bool{start.ID: true}
	queue := []string{start.ID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range doc.OutgoingEdges(id) {
			if doc.FindNode(e.To) == nil || reached[e.To] {
				continue
			}
			reached[e.To] = true
			queue = append(queue, e.To)
		}
	}
	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		if !reached[n.ID] {
			r.Issues = append(r.Issues, Issue{
				Code:     CodeUnreachable,
				Severity: SeverityWarning,
				Message:  "node is not reachable from the start node",
				NodeID:   n.ID,
			})
			continue
		}
		if n.Kind != types.KindEnd && len(doc.OutgoingEdges(n.ID)) == 0 {
			r.Issues = append(r.Issues, Issue{
				Code:     CodeNoOutgoing,
				Severity: SeverityWarning,
				Message:  "node has no outgoing edge; the conversation stops here",
				NodeID:   n.ID,
			})
		}
	}
}
