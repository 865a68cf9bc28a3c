package flow

import (
	"github.com/google/uuid"

	"github.com/zapfunnel/flow-service/internal/quota"
	"github.com/zapfunnel/flow-service/pkg/types"
)

// PasteOffset is how far pasted nodes land from the originals.
const PasteOffset = 40

// Clipboard holds a copied subgraph: the selected nodes plus every
// edge whose two endpoints were both selected.
type Clipboard struct {
	Nodes []types.Node
	Edges []types.Edge
}

// Copy snapshots the given node ids out of the document. Edges to
// non-copied nodes are dropped. Unknown ids are ignored.
func Copy(doc *types.Document, ids []string) *Clipboard {
	picked := make(map[string]bool, len(ids))
	cb := &Clipboard{}
	for _, id := range ids {
		node := doc.FindNode(id)
		if node == nil || picked[id] {
			continue
		}
		picked[id] = true
		n := *node
		if n.Data.Options != nil {
			n.Data.Options = append([]string(nil), n.Data.Options...)
		}
		cb.Nodes = append(cb.Nodes, n)
	}
	for _, e := range doc.Edges {
		if picked[e.From] && picked[e.To] {
			cb.Edges = append(cb.Edges, e)
		}
	}
	return cb
}

// Paste inserts the clipboard's subgraph into the mutator's document
// with freshly minted ids, the whole selection offset by PasteOffset
// and clamped to the canvas extent. The paste is quota-checked as a
// unit: if the copied message nodes would push past the cap the whole
// paste is refused, leaving the document untouched. A pasted start
// node is demoted only by refusal: if the document already has a start
// node the paste is rejected with ErrStartExists. A clipboard carrying
// an unknown node kind is rejected with ErrInvalidKind.
//
// Returns the new ids of the pasted nodes in clipboard order.
func (m *Mutator) Paste(cb *Clipboard, clampW, clampH float64) ([]string, error) {
	if cb == nil || len(cb.Nodes) == 0 {
		return nil, nil
	}

	willAdd := 0
	starts := 0
	for _, n := range cb.Nodes {
		if !n.Kind.Valid() {
			return nil, ErrInvalidKind
		}
		if n.Kind == types.KindMessage {
			willAdd++
		}
		if n.Kind == types.KindStart {
			starts++
		}
	}
	if limit := m.gate.LimitFor(types.KindMessage); limit != quota.Unbounded {
		if m.gate.CurrentCount(types.KindMessage)+willAdd > limit {
			return nil, ErrQuotaExceeded
		}
	}
	if starts > 0 && (m.doc.StartNode() != nil || starts > 1) {
		return nil, ErrStartExists
	}

	idMap := make(map[string]string, len(cb.Nodes))
	newIDs := make([]string, 0, len(cb.Nodes))
	for _, n := range cb.Nodes {
		id := uuid.NewString()
		idMap[n.ID] = id
		newIDs = append(newIDs, id)

		cp := n
		cp.ID = id
		cp.Position.X = clampCoord(cp.Position.X+PasteOffset, clampW)
		cp.Position.Y = clampCoord(cp.Position.Y+PasteOffset, clampH)
		if cp.Data.Options != nil {
			cp.Data.Options = append([]string(nil), cp.Data.Options...)
		}
		m.doc.Nodes = append(m.doc.Nodes, cp)
	}
	for _, e := range cb.Edges {
		from, okFrom := idMap[e.From]
		to, okTo := idMap[e.To]
		if !okFrom || !okTo {
			continue
		}
		cp := e
		cp.ID = uuid.NewString()
		cp.From = from
		cp.To = to
		m.doc.Edges = append(m.doc.Edges, cp)
	}
	m.touch()
	return newIDs, nil
}

func clampCoord(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if max > 0 && v > max {
		return max
	}
	return v
}
