package types

import (
	"time"
)

// NodeKind identifies a node's role in the flow and which payload
// fields are meaningful. Fields irrelevant to the kind are carried
// but ignored by all consumers.
type NodeKind string

const (
	KindStart   NodeKind = "start"
	KindMessage NodeKind = "message"
	KindChoice  NodeKind = "choice"
	KindCollect NodeKind = "collect"
	KindDelay   NodeKind = "delay"
	KindAI      NodeKind = "ai"
	KindHTTP    NodeKind = "http"
	KindEnd     NodeKind = "end"
)

// Valid reports whether k is one of the closed set of node kinds.
func (k NodeKind) Valid() bool {
	switch k {
	case KindStart, KindMessage, KindChoice, KindCollect, KindDelay, KindAI, KindHTTP, KindEnd:
		return true
	}
	return false
}

// Branching reports whether the simulator requires an explicit option
// choice to leave a node of this kind.
func (k NodeKind) Branching() bool {
	return k == KindChoice
}

// HandleSide is one of the four fixed attachment points on a node card.
// It is a rendering/anchor concern only, never semantic.
type HandleSide string

const (
	HandleLeft   HandleSide = "left"
	HandleRight  HandleSide = "right"
	HandleTop    HandleSide = "top"
	HandleBottom HandleSide = "bottom"
)

// Position is a point in world (document) space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData is the kind-dependent payload. Only the fields relevant to
// the node's kind are meaningful; the rest round-trip untouched.
type NodeData struct {
	Label string `json:"label,omitempty"`

	// message
	Text string `json:"text,omitempty"`

	// choice: ordered option labels. Outgoing edge order aligns with
	// option order by construction, not by label.
	Options []string `json:"options,omitempty"`

	// collect
	Variable   string `json:"variable,omitempty"`
	Validation string `json:"validation,omitempty"` // text, email, phone

	// delay
	DelaySeconds int  `json:"delaySeconds,omitempty"`
	ShowTyping   bool `json:"showTyping,omitempty"`

	// ai
	Prompt string `json:"prompt,omitempty"`

	// http
	HTTPMethod string `json:"httpMethod,omitempty"`
	HTTPURL    string `json:"httpUrl,omitempty"`
}

// Node is a vertex in the flow graph.
type Node struct {
	ID       string   `json:"id"`
	Kind     NodeKind `json:"kind"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Edge is a directed connection between two node ids. SourceHandle and
// TargetHandle record which side of each card the edge attaches to.
// Condition is an optional guard expression evaluated against collected
// variables when a non-branching node has several outgoing edges.
type Edge struct {
	ID           string     `json:"id"`
	From         string     `json:"from"`
	To           string     `json:"to"`
	Label        string     `json:"label,omitempty"`
	SourceHandle HandleSide `json:"sourceHandle,omitempty"`
	TargetHandle HandleSide `json:"targetHandle,omitempty"`
	Condition    string     `json:"condition,omitempty"`
}

// Document is the aggregate root for one flow/funnel: the persisted
// directed graph an editor session works on.
type Document struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Nodes     []Node    `json:"nodes"`
	Edges     []Edge    `json:"edges"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FindNode returns the node with the given id, or nil.
func (d *Document) FindNode(id string) *Node {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i]
		}
	}
	return nil
}

// FindEdge returns the edge with the given id, or nil.
func (d *Document) FindEdge(id string) *Edge {
	for i := range d.Edges {
		if d.Edges[i].ID == id {
			return &d.Edges[i]
		}
	}
	return nil
}

// OutgoingEdges returns the edges leaving nodeID in edge-array order.
// That order is the option order for choice nodes.
func (d *Document) OutgoingEdges(nodeID string) []Edge {
	var out []Edge
	for _, e := range d.Edges {
		if e.From == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// IncomingEdges returns the edges arriving at nodeID in edge-array order.
func (d *Document) IncomingEdges(nodeID string) []Edge {
	var in []Edge
	for _, e := range d.Edges {
		if e.To == nodeID {
			in = append(in, e)
		}
	}
	return in
}

// StartNode returns the first node with kind start, or nil.
func (d *Document) StartNode() *Node {
	for i := range d.Nodes {
		if d.Nodes[i].Kind == KindStart {
			return &d.Nodes[i]
		}
	}
	return nil
}

// CountKind returns how many nodes of the given kind the document holds.
func (d *Document) CountKind(kind NodeKind) int {
	n := 0
	for i := range d.Nodes {
		if d.Nodes[i].Kind == kind {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	cp := *d
	cp.Nodes = make([]Node, len(d.Nodes))
	for i, n := range d.Nodes {
		if n.Data.Options != nil {
			n.Data.Options = append([]string(nil), n.Data.Options...)
		}
		cp.Nodes[i] = n
	}
	cp.Edges = append([]Edge(nil), d.Edges...)
	return &cp
}
