package canvas

import (
	"sort"

	"github.com/zapfunnel/flow-service/internal/flow"
	"github.com/zapfunnel/flow-service/pkg/types"
)

// State names the interaction state machine's states.
type State int

const (
	Idle State = iota
	PanningCanvas
	DraggingNode
	ConnectingEdge
)

// Modifiers carries the keyboard modifiers active on a pointer event.
type Modifiers struct {
	Shift bool
	Ctrl  bool
	Meta  bool
}

func (m Modifiers) multi() bool { return m.Shift || m.Ctrl || m.Meta }

// Controller turns raw pointer events into node drags, canvas pans and
// connection gestures, issuing mutations through the injected Mutator.
// It is pure with respect to rendering: input is events, output is
// mutation calls plus queryable state.
type Controller struct {
	vp  *Viewport
	mut *flow.Mutator

	state State

	selection map[string]bool

	// PanningCanvas
	panStart     Point // pan offset at gesture start
	pointerStart Point // screen position at gesture start

	// DraggingNode: per-node world-space offset between the pointer
	// and the node's position, so a multi-selection drags rigidly.
	dragIDs     []string
	dragOffsets map[string]Point

	// ConnectingEdge
	connectSource HandleRef
	connectPos    Point // live pointer position, world space
	hoverTarget   *HandleRef
}

// NewController creates a controller over a viewport and mutator.
func NewController(vp *Viewport, mut *flow.Mutator) *Controller {
	return &Controller{
		vp:        vp,
		mut:       mut,
		selection: make(map[string]bool),
	}
}

// State returns the current interaction state.
func (c *Controller) State() State { return c.state }

// Selection returns the selected node ids in sorted order.
func (c *Controller) Selection() []string {
	ids := make([]string, 0, len(c.selection))
	for id := range c.selection {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Selected reports whether a node is in the selection.
func (c *Controller) Selected(id string) bool { return c.selection[id] }

// ConnectPreview returns the rubber-band preview for a connection in
// progress: the source anchor, the live pointer position and whether a
// drop target is hovered.
func (c *Controller) ConnectPreview() (from Point, to Point, hovering bool, ok bool) {
	if c.state != ConnectingEdge {
		return Point{}, Point{}, false, false
	}
	doc := c.mut.Document()
	src := doc.FindNode(c.connectSource.NodeID)
	if src == nil {
		return Point{}, Point{}, false, false
	}
	return Anchor(src, c.connectSource.Side), c.connectPos, c.hoverTarget != nil, true
}

// PointerDown dispatches on what sits under the pointer: a handle
// starts a connection gesture, a node body starts a drag (adjusting
// the selection first), and empty canvas starts a pan and clears the
// selection.
func (c *Controller) PointerDown(screen Point, mods Modifiers) {
	if c.state != Idle {
		return
	}
	doc := c.mut.Document()
	world := c.vp.ScreenToWorld(screen)

	if h, ok := HandleAt(doc, world); ok {
		c.state = ConnectingEdge
		c.connectSource = h
		c.connectPos = world
		c.hoverTarget = nil
		return
	}

	if node := NodeAt(doc, world); node != nil {
		if mods.multi() {
			if c.selection[node.ID] {
				delete(c.selection, node.ID)
			} else {
				c.selection[node.ID] = true
			}
		} else if !c.selection[node.ID] {
			c.selection = map[string]bool{node.ID: true}
		}
		// Deselecting with a modifier click still drags the node
		// under the pointer; the offsets pin the group to it.
		group := make(map[string]bool, len(c.selection)+1)
		for id := range c.selection {
			group[id] = true
		}
		group[node.ID] = true

		c.dragIDs = c.dragIDs[:0]
		c.dragOffsets = make(map[string]Point, len(group))
		for id := range group {
			n := doc.FindNode(id)
			if n == nil {
				continue
			}
			c.dragIDs = append(c.dragIDs, id)
			c.dragOffsets[id] = Point{X: world.X - n.Position.X, Y: world.Y - n.Position.Y}
		}
		sort.Strings(c.dragIDs)
		c.state = DraggingNode
		return
	}

	c.selection = make(map[string]bool)
	c.state = PanningCanvas
	c.panStart = c.vp.Pan
	c.pointerStart = screen
}

// PointerMove advances the active gesture.
func (c *Controller) PointerMove(screen Point) {
	switch c.state {
	case PanningCanvas:
		c.vp.Pan = Point{
			X: c.panStart.X + (screen.X - c.pointerStart.X),
			Y: c.panStart.Y + (screen.Y - c.pointerStart.Y),
		}
	case DraggingNode:
		world := c.vp.ScreenToWorld(screen)
		for _, id := range c.dragIDs {
			off := c.dragOffsets[id]
			x, y := ClampNodePosition(world.X-off.X, world.Y-off.Y)
			c.mut.UpdateNode(id, flow.NodePatch{Position: &types.Position{X: x, Y: y}})
		}
	case ConnectingEdge:
		world := c.vp.ScreenToWorld(screen)
		c.connectPos = world
		if h, ok := HandleAt(c.mut.Document(), world); ok && h.NodeID != c.connectSource.NodeID {
			c.hoverTarget = &h
		} else {
			c.hoverTarget = nil
		}
	}
}

// PointerUp ends the active gesture. A connection gesture released
// over another node's handle creates the edge; released anywhere else
// it is abandoned without side effects.
func (c *Controller) PointerUp() {
	if c.state == ConnectingEdge && c.hoverTarget != nil && c.hoverTarget.NodeID != c.connectSource.NodeID {
		// Duplicate and self-loop refusals are the mutator's call;
		// an abandoned gesture is not an error here.
		_, _ = c.mut.AddEdge(c.connectSource.NodeID, c.hoverTarget.NodeID, flow.EdgeOptions{
			SourceHandle: c.connectSource.Side,
			TargetHandle: c.hoverTarget.Side,
		})
	}
	c.reset()
}

// PointerLeave abandons any gesture, same as a release off-target.
func (c *Controller) PointerLeave() { c.reset() }

// Escape clears the selection and abandons any pending gesture.
func (c *Controller) Escape() {
	c.selection = make(map[string]bool)
	c.reset()
}

// Click selects a node without starting a drag: plain click replaces
// the selection, modifier click toggles membership, empty canvas
// clears it.
func (c *Controller) Click(screen Point, mods Modifiers) {
	if c.state != Idle {
		return
	}
	world := c.vp.ScreenToWorld(screen)
	node := NodeAt(c.mut.Document(), world)
	if node == nil {
		c.selection = make(map[string]bool)
		return
	}
	if mods.multi() {
		if c.selection[node.ID] {
			delete(c.selection, node.ID)
		} else {
			c.selection[node.ID] = true
		}
		return
	}
	c.selection = map[string]bool{node.ID: true}
}

// DeleteSelection removes every selected node, cascading edges.
func (c *Controller) DeleteSelection() {
	for _, id := range c.Selection() {
		c.mut.RemoveNode(id)
	}
	c.selection = make(map[string]bool)
}

// CopySelection snapshots the selected subgraph.
func (c *Controller) CopySelection() *flow.Clipboard {
	return flow.Copy(c.mut.Document(), c.Selection())
}

// Paste inserts a clipboard and selects the pasted nodes. A quota
// refusal propagates untouched so the UI can prompt for upgrade.
func (c *Controller) Paste(cb *flow.Clipboard) error {
	ids, err := c.mut.Paste(cb, CanvasWidth-NodeWidth, CanvasHeight-NodeHeight)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		c.selection = make(map[string]bool, len(ids))
		for _, id := range ids {
			c.selection[id] = true
		}
	}
	return nil
}

func (c *Controller) reset() {
	c.state = Idle
	c.dragIDs = nil
	c.dragOffsets = nil
	c.hoverTarget = nil
	c.connectSource = HandleRef{}
}
