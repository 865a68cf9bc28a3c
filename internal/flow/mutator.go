// Package flow implements the graph mutation API over a single flow
// document. Every operation is synchronous and atomic: a refused
// operation leaves the document untouched, and node removal cascades
// to incident edges so no mutation can strand a dangling edge.
package flow

import (
	"time"

	"github.com/google/uuid"

	"github.com/zapfunnel/flow-service/internal/quota"
	"github.com/zapfunnel/flow-service/pkg/types"
)

// Mutator applies structural mutations to one document. It is bound to
// an injected quota gate so plan limits are checked before gated kinds
// are admitted.
type Mutator struct {
	doc  *types.Document
	gate quota.Gate
	now  func() time.Time
}

// New creates a mutator for doc. A nil gate admits everything.
func New(doc *types.Document, gate quota.Gate) *Mutator {
	if gate == nil {
		gate = quota.AllowAll{}
	}
	return &Mutator{doc: doc, gate: gate, now: time.Now}
}

// Document returns the document the mutator operates on.
func (m *Mutator) Document() *types.Document { return m.doc }

func (m *Mutator) touch() {
	m.doc.UpdatedAt = m.now().UTC()
}

// defaultData returns the kind-appropriate default payload for a new node.
func defaultData(kind types.NodeKind) types.NodeData {
	switch kind {
	case types.KindStart:
		return types.NodeData{Label: "Start"}
	case types.KindMessage:
		return types.NodeData{Label: "Message", Text: "Type your message..."}
	case types.KindChoice:
		return types.NodeData{Label: "Choice", Options: []string{"Option 1", "Option 2"}}
	case types.KindCollect:
		return types.NodeData{Label: "Collect", Validation: "text"}
	case types.KindDelay:
		return types.NodeData{Label: "Wait", DelaySeconds: 3, ShowTyping: true}
	case types.KindAI:
		return types.NodeData{Label: "AI", Prompt: "Analyze the user's message..."}
	case types.KindHTTP:
		return types.NodeData{Label: "HTTP", HTTPMethod: "GET", HTTPURL: "https://api.example.com"}
	case types.KindEnd:
		return types.NodeData{Label: "End"}
	default:
		return types.NodeData{}
	}
}

// AddNode inserts a new node of the given kind at a world position.
// It refuses a second start node and refuses gated kinds whose cap is
// reached, without partially inserting.
func (m *Mutator) AddNode(kind types.NodeKind, x, y float64) (*types.Node, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	if kind == types.KindStart && m.doc.StartNode() != nil {
		return nil, ErrStartExists
	}
	if limit := m.gate.LimitFor(kind); limit != quota.Unbounded {
		if m.gate.CurrentCount(kind) >= limit {
			return nil, ErrQuotaExceeded
		}
	}

	node := types.Node{
		ID:       uuid.NewString(),
		Kind:     kind,
		Position: types.Position{X: x, Y: y},
		Data:     defaultData(kind),
	}
	m.doc.Nodes = append(m.doc.Nodes, node)
	m.touch()
	return &m.doc.Nodes[len(m.doc.Nodes)-1], nil
}

// NodePatch is a partial node update. Nil fields are left untouched;
// Data is deep-merged field by field.
type NodePatch struct {
	Position *types.Position `json:"position,omitempty"`
	Data     *DataPatch      `json:"data,omitempty"`
}

// DataPatch is a partial NodeData update.
type DataPatch struct {
	Label        *string  `json:"label,omitempty"`
	Text         *string  `json:"text,omitempty"`
	Options      []string `json:"options,omitempty"`
	Variable     *string  `json:"variable,omitempty"`
	Validation   *string  `json:"validation,omitempty"`
	DelaySeconds *int     `json:"delaySeconds,omitempty"`
	ShowTyping   *bool    `json:"showTyping,omitempty"`
	Prompt       *string  `json:"prompt,omitempty"`
	HTTPMethod   *string  `json:"httpMethod,omitempty"`
	HTTPURL      *string  `json:"httpUrl,omitempty"`
}

// UpdateNode merges a patch into the node. A missing id is a silent
// no-op so a mid-gesture UI never has to recover from a hard failure.
func (m *Mutator) UpdateNode(id string, patch NodePatch) {
	node := m.doc.FindNode(id)
	if node == nil {
		return
	}
	if patch.Position != nil {
		node.Position = *patch.Position
	}
	if patch.Data != nil {
		mergeData(&node.Data, patch.Data)
	}
	m.touch()
}

func mergeData(dst *types.NodeData, p *DataPatch) {
	if p.Label != nil {
		dst.Label = *p.Label
	}
	if p.Text != nil {
		dst.Text = *p.Text
	}
	if p.Options != nil {
		dst.Options = append([]string(nil), p.Options...)
	}
	if p.Variable != nil {
		dst.Variable = *p.Variable
	}
	if p.Validation != nil {
		dst.Validation = *p.Validation
	}
	if p.DelaySeconds != nil {
		dst.DelaySeconds = *p.DelaySeconds
	}
	if p.ShowTyping != nil {
		dst.ShowTyping = *p.ShowTyping
	}
	if p.Prompt != nil {
		dst.Prompt = *p.Prompt
	}
	if p.HTTPMethod != nil {
		dst.HTTPMethod = *p.HTTPMethod
	}
	if p.HTTPURL != nil {
		dst.HTTPURL = *p.HTTPURL
	}
}

// RemoveNode deletes a node and cascades to every edge touching it.
// Removing a non-existent id is a no-op.
func (m *Mutator) RemoveNode(id string) {
	if m.doc.FindNode(id) == nil {
		return
	}
	nodes := m.doc.Nodes[:0]
	for _, n := range m.doc.Nodes {
		if n.ID != id {
			nodes = append(nodes, n)
		}
	}
	m.doc.Nodes = nodes

	edges := m.doc.Edges[:0]
	for _, e := range m.doc.Edges {
		if e.From != id && e.To != id {
			edges = append(edges, e)
		}
	}
	m.doc.Edges = edges
	m.touch()
}

// EdgeOptions carries the optional attachment sides for a new edge.
type EdgeOptions struct {
	SourceHandle types.HandleSide
	TargetHandle types.HandleSide
	Label        string
}

// AddEdge connects two existing nodes. Self-loops are refused, and a
// duplicate (from,to) pair returns the existing edge unchanged rather
// than inserting a second one. Handles do not participate in the
// duplicate check; they are a rendering concern.
func (m *Mutator) AddEdge(from, to string, opts EdgeOptions) (*types.Edge, error) {
	if from == to {
		return nil, ErrSelfLoop
	}
	if m.doc.FindNode(from) == nil || m.doc.FindNode(to) == nil {
		return nil, ErrNodeNotFound
	}
	for i := range m.doc.Edges {
		if m.doc.Edges[i].From == from && m.doc.Edges[i].To == to {
			return &m.doc.Edges[i], nil
		}
	}
	edge := types.Edge{
		ID:           uuid.NewString(),
		From:         from,
		To:           to,
		Label:        opts.Label,
		SourceHandle: opts.SourceHandle,
		TargetHandle: opts.TargetHandle,
	}
	m.doc.Edges = append(m.doc.Edges, edge)
	m.touch()
	return &m.doc.Edges[len(m.doc.Edges)-1], nil
}

// RemoveEdge deletes an edge by id. Idempotent.
func (m *Mutator) RemoveEdge(id string) {
	edges := m.doc.Edges[:0]
	removed := false
	for _, e := range m.doc.Edges {
		if e.ID == id {
			removed = true
			continue
		}
		edges = append(edges, e)
	}
	m.doc.Edges = edges
	if removed {
		m.touch()
	}
}

// UpdateEdgeLabel sets an edge's label. A missing id is a no-op.
func (m *Mutator) UpdateEdgeLabel(id, label string) {
	edge := m.doc.FindEdge(id)
	if edge == nil {
		return
	}
	edge.Label = label
	m.touch()
}

// UpdateEdgeCondition sets an edge's guard expression. A missing id is
// a no-op.
func (m *Mutator) UpdateEdgeCondition(id, condition string) {
	edge := m.doc.FindEdge(id)
	if edge == nil {
		return
	}
	edge.Condition = condition
	m.touch()
}
