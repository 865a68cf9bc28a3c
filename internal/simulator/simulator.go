// Package simulator replays a flow document as a chat conversation
// without sending anything to a real channel. It walks the graph from
// the start node, emitting preview events for each node and pausing
// wherever the flow waits on visitor input.
package simulator

import (
	"errors"
	"fmt"

	"github.com/zapfunnel/flow-service/pkg/types"
)

var (
	// ErrNoStartNode means the document has no start node to run from.
	ErrNoStartNode = errors.New("flow has no start node")
	// ErrConversationEnded rejects input after the flow reached its end.
	ErrConversationEnded = errors.New("conversation has ended")
	// ErrNoEdgeForOption means the chosen option has no outgoing edge.
	ErrNoEdgeForOption = errors.New("no edge for chosen option")
	// ErrNotWaiting rejects input while the flow is mid auto-advance.
	ErrNotWaiting = errors.New("conversation is not waiting for input")
	// ErrStepLimit aborts a walk that keeps cycling without waiting.
	ErrStepLimit = errors.New("step limit exceeded")
)

// maxAutoSteps bounds one auto-advance run so a cyclic graph cannot
// spin the simulator forever.
const maxAutoSteps = 100

// Event is one preview entry in the simulated transcript.
type Event struct {
	NodeID  string         `json:"nodeId"`
	Kind    types.NodeKind `json:"kind"`
	Text    string         `json:"text,omitempty"`
	Options []string       `json:"options,omitempty"`
	// DelaySeconds is set on delay previews; the simulator does not
	// actually sleep.
	DelaySeconds int `json:"delaySeconds,omitempty"`
}

// Input is the visitor's reply while the flow waits.
type Input struct {
	// Option is the zero-based choice index, used at choice nodes.
	Option int `json:"option"`
	// Text is the free-form reply, used at collect nodes.
	Text string `json:"text"`
}

// Session is one simulated conversation over a fixed document
// snapshot. It is not safe for concurrent use.
type Session struct {
	doc  *types.Document
	eval *Evaluator

	current string
	waiting types.NodeKind
	ended   bool

	vars      map[string]string
	lastInput string
	path      []string
}

// NewSession snapshots the document and positions the session at its
// start node.
func NewSession(doc *types.Document) (*Session, error) {
	snap := doc.Clone()
	start := snap.StartNode()
	if start == nil {
		return nil, ErrNoStartNode
	}
	return &Session{
		doc:     snap,
		eval:    NewEvaluator(),
		current: start.ID,
		vars:    make(map[string]string),
	}, nil
}

// Start runs the flow from the start node until it first waits for
// input or ends, returning the preview events emitted on the way.
func (s *Session) Start() ([]Event, error) {
	return s.run(s.current)
}

// Advance feeds visitor input to the waiting node and resumes the
// walk. At a choice node the option index picks the matching outgoing
// edge; at a collect node the text is stored under the node's
// variable name.
func (s *Session) Advance(in Input) ([]Event, error) {
	if s.ended {
		return nil, ErrConversationEnded
	}
	switch s.waiting {
	case types.KindChoice:
		edges := s.doc.OutgoingEdges(s.current)
		if in.Option < 0 || in.Option >= len(edges) {
			return nil, fmt.Errorf("%w: option %d of %d", ErrNoEdgeForOption, in.Option, len(edges))
		}
		s.waiting = ""
		return s.run(edges[in.Option].To)
	case types.KindCollect:
		node := s.doc.FindNode(s.current)
		if node != nil && node.Data.Variable != "" {
			s.vars[node.Data.Variable] = in.Text
		}
		s.lastInput = in.Text
		s.waiting = ""
		next, ok := s.nextEdge(s.current)
		if !ok {
			s.ended = true
			return nil, nil
		}
		return s.run(next.To)
	default:
		return nil, ErrNotWaiting
	}
}

// Ended reports whether the conversation reached an end.
func (s *Session) Ended() bool { return s.ended }

// Waiting returns the kind of node the session is blocked on, or
// empty when ended or mid-run.
func (s *Session) Waiting() types.NodeKind { return s.waiting }

// Path returns the visited node ids in order.
func (s *Session) Path() []string {
	out := make([]string, len(s.path))
	copy(out, s.path)
	return out
}

// Vars returns a copy of the variables collected so far.
func (s *Session) Vars() map[string]string {
	out := make(map[string]string, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}

// run auto-advances from a node until the flow waits or ends.
func (s *Session) run(id string) ([]Event, error) {
	var events []Event
	for steps := 0; ; steps++ {
		if steps >= maxAutoSteps {
			return events, ErrStepLimit
		}
		node := s.doc.FindNode(id)
		if node == nil {
			s.ended = true
			return events, nil
		}
		s.current = id
		s.path = append(s.path, id)

		if ev, ok := preview(node); ok {
			events = append(events, ev)
		}

		switch node.Kind {
		case types.KindChoice, types.KindCollect:
			s.waiting = node.Kind
			return events, nil
		case types.KindEnd:
			s.ended = true
			return events, nil
		}

		next, ok := s.nextEdge(id)
		if !ok {
			s.ended = true
			return events, nil
		}
		id = next.To
	}
}

// nextEdge picks the outgoing edge from a non-branching node: the
// first whose condition holds, else the first unconditioned edge,
// else the first edge. A condition that fails to evaluate counts as
// false.
func (s *Session) nextEdge(id string) (types.Edge, bool) {
	edges := s.doc.OutgoingEdges(id)
	if len(edges) == 0 {
		return types.Edge{}, false
	}
	if len(edges) == 1 {
		return edges[0], true
	}

	env := buildEnvironment(s.vars, s.lastInput)
	fallback := -1
	for i, e := range edges {
		if e.Condition == "" {
			if fallback < 0 {
				fallback = i
			}
			continue
		}
		ok, err := s.eval.EvaluateBool(e.Condition, env)
		if err == nil && ok {
			return e, true
		}
	}
	if fallback >= 0 {
		return edges[fallback], true
	}
	return edges[0], true
}

// preview renders the transcript entry for one node. Start nodes are
// silent.
func preview(node *types.Node) (Event, bool) {
	ev := Event{NodeID: node.ID, Kind: node.Kind}
	switch node.Kind {
	case types.KindStart:
		return Event{}, false
	case types.KindMessage:
		ev.Text = node.Data.Text
	case types.KindChoice:
		ev.Text = node.Data.Text
		ev.Options = append([]string(nil), node.Data.Options...)
	case types.KindCollect:
		ev.Text = node.Data.Text
	case types.KindDelay:
		ev.DelaySeconds = node.Data.DelaySeconds
	case types.KindAI:
		ev.Text = node.Data.Prompt
	case types.KindHTTP:
		ev.Text = fmt.Sprintf("%s %s", node.Data.HTTPMethod, node.Data.HTTPURL)
	case types.KindEnd:
		ev.Text = node.Data.Text
	}
	return ev, true
}
