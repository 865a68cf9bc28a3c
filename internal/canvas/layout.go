package canvas

import (
	"math"
	"sort"

	"github.com/zapfunnel/flow-service/pkg/types"
)

const (
	layoutGapX    = 80
	layoutGapY    = 60
	layoutMarginX = 40
	layoutMarginY = 40
)

// AutoLayout arranges nodes in a deterministic left-to-right grid:
// breadth-first depth from the start node picks the column, and rows
// within a column are ordered by node id so two runs over the same
// document agree. Unreachable nodes fill columns after the deepest
// reachable one. Positions are clamped to the canvas.
func AutoLayout(doc *types.Document) {
	if len(doc.Nodes) == 0 {
		return
	}

	depth := make(map[string]int, len(doc.Nodes))
	if start := doc.StartNode(); start != nil {
		depth[start.ID] = 0
		queue := []string{start.ID}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			for _, e := range doc.OutgoingEdges(id) {
				if _, seen := depth[e.To]; seen {
					continue
				}
				depth[e.To] = depth[id] + 1
				queue = append(queue, e.To)
			}
		}
	}

	maxDepth := -1
	for _, d := range depth {
		if d > maxDepth {
			maxDepth = d
		}
	}

	// Orphans get their own trailing column.
	orphan := maxDepth + 1
	columns := make(map[int][]string)
	for i := range doc.Nodes {
		id := doc.Nodes[i].ID
		d, ok := depth[id]
		if !ok {
			d = orphan
		}
		columns[d] = append(columns[d], id)
	}

	for d, ids := range columns {
		sort.Strings(ids)
		for row, id := range ids {
			n := doc.FindNode(id)
			x, y := ClampNodePosition(
				float64(layoutMarginX+d*(NodeWidth+layoutGapX)),
				float64(layoutMarginY+row*(NodeHeight+layoutGapY)),
			)
			n.Position = types.Position{X: x, Y: y}
		}
	}
}

// BoundingBox returns the tight world-space box around all nodes.
func BoundingBox(doc *types.Document) (minX, minY, maxX, maxY float64, ok bool) {
	if len(doc.Nodes) == 0 {
		return 0, 0, 0, 0, false
	}
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for i := range doc.Nodes {
		p := doc.Nodes[i].Position
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X+NodeWidth)
		maxY = math.Max(maxY, p.Y+NodeHeight)
	}
	return minX, minY, maxX, maxY, true
}

// CenterView pans and zooms the viewport so the whole graph fits a
// screen of the given size, capped at 1:1 so a tiny graph is not
// blown up past natural scale.
func CenterView(vp *Viewport, doc *types.Document, screenW, screenH float64) {
	minX, minY, maxX, maxY, ok := BoundingBox(doc)
	if !ok || screenW <= 0 || screenH <= 0 {
		vp.Reset()
		return
	}
	w := maxX - minX
	h := maxY - minY
	scale := math.Min(screenW/(w+2*layoutMarginX), screenH/(h+2*layoutMarginY))
	scale = math.Min(scale, 1)
	vp.Scale = clamp(scale, MinZoom, MaxZoom)

	cx := minX + w/2
	cy := minY + h/2
	vp.Pan = Point{
		X: screenW/2 - cx*vp.Scale,
		Y: screenH/2 - cy*vp.Scale,
	}
}
