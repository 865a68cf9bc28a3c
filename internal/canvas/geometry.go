package canvas

import (
	"fmt"
	"math"

	"github.com/zapfunnel/flow-service/pkg/types"
)

// HandleRadius is the world-space hit radius around a connection handle.
const HandleRadius = 10.0

// Anchor returns the world-space attachment point for one side of a
// node's card.
func Anchor(node *types.Node, side types.HandleSide) Point {
	x, y := node.Position.X, node.Position.Y
	switch side {
	case types.HandleLeft:
		return Point{X: x, Y: y + NodeHeight/2}
	case types.HandleRight:
		return Point{X: x + NodeWidth, Y: y + NodeHeight/2}
	case types.HandleTop:
		return Point{X: x + NodeWidth/2, Y: y}
	case types.HandleBottom:
		return Point{X: x + NodeWidth/2, Y: y + NodeHeight}
	default:
		return Point{X: x + NodeWidth/2, Y: y + NodeHeight/2}
	}
}

// handleSides is the fixed order handles are hit-tested in.
var handleSides = []types.HandleSide{
	types.HandleLeft, types.HandleRight, types.HandleTop, types.HandleBottom,
}

// BezierPath renders the SVG path for an edge between two anchors: a
// cubic curve whose control points extend along the dominant axis,
// with a minimum bow of 40 world units.
func BezierPath(a, b Point) string {
	dx := b.X - a.X
	dy := b.Y - a.Y
	curve := math.Max(40, math.Hypot(dx, dy)*0.5)

	if math.Abs(dx) >= math.Abs(dy) {
		sign := 1.0
		if dx < 0 {
			sign = -1
		}
		c1x := a.X + sign*curve
		c2x := b.X - sign*curve
		return fmt.Sprintf("M %g,%g C %g,%g %g,%g %g,%g", a.X, a.Y, c1x, a.Y, c2x, b.Y, b.X, b.Y)
	}
	sign := 1.0
	if dy < 0 {
		sign = -1
	}
	c1y := a.Y + sign*curve
	c2y := b.Y - sign*curve
	return fmt.Sprintf("M %g,%g C %g,%g %g,%g %g,%g", a.X, a.Y, a.X, c1y, b.X, c2y, b.X, b.Y)
}

// EdgePath returns the rendered path for an edge, defaulting missing
// handles to right→left like the canvas does.
func EdgePath(doc *types.Document, e *types.Edge) (string, bool) {
	from := doc.FindNode(e.From)
	to := doc.FindNode(e.To)
	if from == nil || to == nil {
		return "", false
	}
	src := e.SourceHandle
	if src == "" {
		src = types.HandleRight
	}
	dst := e.TargetHandle
	if dst == "" {
		dst = types.HandleLeft
	}
	return BezierPath(Anchor(from, src), Anchor(to, dst)), true
}

// NodeAt returns the topmost node whose card contains the world-space
// point. Later nodes sit above earlier ones, matching default z-order.
func NodeAt(doc *types.Document, p Point) *types.Node {
	for i := len(doc.Nodes) - 1; i >= 0; i-- {
		n := &doc.Nodes[i]
		if p.X >= n.Position.X && p.X <= n.Position.X+NodeWidth &&
			p.Y >= n.Position.Y && p.Y <= n.Position.Y+NodeHeight {
			return n
		}
	}
	return nil
}

// HandleRef identifies one connection handle on one node.
type HandleRef struct {
	NodeID string
	Side   types.HandleSide
}

// HandleAt returns the handle under the world-space point, if any.
// Handles win over node bodies, so they are checked first by callers.
func HandleAt(doc *types.Document, p Point) (HandleRef, bool) {
	for i := len(doc.Nodes) - 1; i >= 0; i-- {
		n := &doc.Nodes[i]
		for _, side := range handleSides {
			a := Anchor(n, side)
			if math.Hypot(p.X-a.X, p.Y-a.Y) <= HandleRadius {
				return HandleRef{NodeID: n.ID, Side: side}, true
			}
		}
	}
	return HandleRef{}, false
}
