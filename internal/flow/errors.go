package flow

import "errors"

// Sentinel errors returned by the mutation layer. All are local and
// recoverable: the worst outcome is that one mutation did not apply.
var (
	// ErrNodeNotFound is returned when an edge endpoint does not exist.
	ErrNodeNotFound = errors.New("flow: node not found")

	// ErrEdgeNotFound is returned when an edge id does not resolve.
	ErrEdgeNotFound = errors.New("flow: edge not found")

	// ErrStartExists is returned when inserting a second start node.
	ErrStartExists = errors.New("flow: flow already has a start node")

	// ErrSelfLoop is returned when an edge would connect a node to itself.
	ErrSelfLoop = errors.New("flow: self-loop edges are not allowed")

	// ErrQuotaExceeded is returned when an insertion would exceed a
	// plan-derived cap. Callers must be able to tell it apart from
	// success so the UI can prompt for an upgrade instead of silently
	// dropping data.
	ErrQuotaExceeded = errors.New("flow: plan quota exceeded")

	// ErrInvalidKind is returned for a kind outside the closed set.
	ErrInvalidKind = errors.New("flow: invalid node kind")
)
