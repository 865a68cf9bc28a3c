package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/zapfunnel/flow-service/internal/archive"
	"github.com/zapfunnel/flow-service/internal/auth"
	"github.com/zapfunnel/flow-service/internal/canvas"
	"github.com/zapfunnel/flow-service/internal/config"
	"github.com/zapfunnel/flow-service/internal/exporter"
	"github.com/zapfunnel/flow-service/internal/flow"
	"github.com/zapfunnel/flow-service/internal/flowstore"
	"github.com/zapfunnel/flow-service/internal/metrics"
	"github.com/zapfunnel/flow-service/internal/quota"
	"github.com/zapfunnel/flow-service/internal/simulator"
	"github.com/zapfunnel/flow-service/internal/validator"
	"github.com/zapfunnel/flow-service/pkg/types"
)

// maxImportBytes bounds import request bodies.
const maxImportBytes = 4 << 20

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	store    flowstore.Store
	exporter *exporter.Exporter
	archive  archive.Store // nil when archiving is disabled
	config   *config.Config
	logger   *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store flowstore.Store, exp *exporter.Exporter, arc archive.Store, cfg *config.Config, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		store:    store,
		exporter: exp,
		archive:  arc,
		config:   cfg,
		logger:   logger,
	}
}

// --- Health Endpoints ---

// Health handles the /health and /healthz endpoints.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Ready handles the /ready endpoint, checking dependencies.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.List(r.Context()); err != nil {
		h.respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavail, "flow store unhealthy", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// limits returns the caller's plan limits.
func (h *Handlers) limits(r *http.Request) quota.Limits {
	return quota.LimitsFor(auth.PlanFromContext(r.Context()))
}

// --- Flow Management ---

// CreateFlowRequest is the request body for creating a flow.
type CreateFlowRequest struct {
	Name string `json:"name"`
}

// CreateFlow handles POST /api/v1/flows
func (h *Handlers) CreateFlow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" {
		req.Name = "Untitled Flow"
	}

	if !h.allowNewFlow(w, r, "create") {
		return
	}

	doc, err := h.store.Create(ctx, req.Name)
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to create flow", err)
		return
	}

	metrics.FlowsTotal.WithLabelValues("created").Inc()
	h.respondJSON(w, http.StatusCreated, doc)
}

// allowNewFlow enforces the per-plan flow cap before anything that
// adds a flow. Writes the refusal itself and returns false when the
// cap is hit.
func (h *Handlers) allowNewFlow(w http.ResponseWriter, r *http.Request, operation string) bool {
	limits := h.limits(r)
	if limits.Flows == quota.Unbounded {
		return true
	}
	summaries, err := h.store.List(r.Context())
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to list flows", err)
		return false
	}
	if len(summaries) >= limits.Flows {
		metrics.QuotaRefusalsTotal.WithLabelValues(operation).Inc()
		h.respondError(w, r, http.StatusForbidden, ErrCodeQuotaExceeded, "flow limit reached for plan", flow.ErrQuotaExceeded)
		return false
	}
	return true
}

// ListFlows handles GET /api/v1/flows
func (h *Handlers) ListFlows(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.List(r.Context())
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to list flows", err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"flows": summaries})
}

// GetFlow handles GET /api/v1/flows/{id}. Loading is total: an unknown
// id is seeded with a start-node-only document and persisted, so the
// editor never opens on an error page.
func (h *Handlers) GetFlow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	doc, err := h.store.Load(r.Context(), id)
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to load flow", err)
		return
	}
	h.respondJSON(w, http.StatusOK, doc)
}

// DeleteFlow handles DELETE /api/v1/flows/{id}
func (h *Handlers) DeleteFlow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, flowstore.ErrFlowNotFound) {
			h.respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "flow not found", err)
			return
		}
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to delete flow", err)
		return
	}
	metrics.FlowsTotal.WithLabelValues("deleted").Inc()
	w.WriteHeader(http.StatusNoContent)
}

// RenameFlowRequest is the request body for renaming a flow.
type RenameFlowRequest struct {
	Name string `json:"name"`
}

// RenameFlow handles POST /api/v1/flows/{id}/rename
func (h *Handlers) RenameFlow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req RenameFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "name is required", nil)
		return
	}

	doc, err := h.store.Rename(r.Context(), id, req.Name)
	if err != nil {
		if errors.Is(err, flowstore.ErrFlowNotFound) {
			h.respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "flow not found", err)
			return
		}
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to rename flow", err)
		return
	}
	h.respondJSON(w, http.StatusOK, doc)
}

// SaveFlow handles PUT /api/v1/flows/{id} — a whole-document save from
// the editor. Validation errors block the save; warnings do not.
func (h *Handlers) SaveFlow(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.loadFlow(w, r)
	if !ok {
		return
	}

	var doc types.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", err)
		return
	}
	doc.ID = existing.ID
	doc.CreatedAt = existing.CreatedAt
	if doc.Name == "" {
		doc.Name = existing.Name
	}

	limits := h.limits(r)
	if limits.MessageNodes != quota.Unbounded && doc.CountKind(types.KindMessage) > limits.MessageNodes {
		metrics.QuotaRefusalsTotal.WithLabelValues("save").Inc()
		h.respondError(w, r, http.StatusForbidden, ErrCodeQuotaExceeded, "document exceeds message node limit", flow.ErrQuotaExceeded)
		return
	}

	result := validator.Validate(&doc)
	if errs := result.Errors(); len(errs) > 0 {
		metrics.ValidationsTotal.WithLabelValues("invalid").Inc()
		h.respondError(w, r, http.StatusUnprocessableEntity, ErrCodeValidationFailed, "document has validation errors", nil)
		return
	}

	saved, err := h.store.Save(r.Context(), &doc)
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to save flow", err)
		return
	}
	metrics.FlowsTotal.WithLabelValues("saved").Inc()
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"flow":   saved,
		"issues": result.Issues,
	})
}

// DuplicateFlow handles POST /api/v1/flows/{id}/duplicate
func (h *Handlers) DuplicateFlow(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.loadFlow(w, r)
	if !ok {
		return
	}
	if !h.allowNewFlow(w, r, "duplicate") {
		return
	}

	cp := doc.Clone()
	cp.ID = uuid.NewString()
	cp.Name = doc.Name + " (copy)"

	created, err := h.store.Insert(r.Context(), cp)
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to duplicate flow", err)
		return
	}
	metrics.FlowsTotal.WithLabelValues("duplicated").Inc()
	h.respondJSON(w, http.StatusCreated, created)
}

// --- Graph Mutations ---

// AddNodeRequest is the request body for adding a node.
type AddNodeRequest struct {
	Kind     types.NodeKind `json:"kind"`
	Position types.Position `json:"position"`
}

// AddNode handles POST /api/v1/flows/{id}/nodes
func (h *Handlers) AddNode(w http.ResponseWriter, r *http.Request) {
	var req AddNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", err)
		return
	}

	h.mutate(w, r, "add_node", func(m *flow.Mutator) (interface{}, error) {
		x, y := canvas.ClampNodePosition(req.Position.X, req.Position.Y)
		return m.AddNode(req.Kind, x, y)
	})
}

// UpdateNode handles PATCH /api/v1/flows/{id}/nodes/{nodeId}
func (h *Handlers) UpdateNode(w http.ResponseWriter, r *http.Request) {
	nodeID := mux.Vars(r)["nodeId"]

	var patch flow.NodePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", err)
		return
	}
	if patch.Position != nil {
		x, y := canvas.ClampNodePosition(patch.Position.X, patch.Position.Y)
		patch.Position = &types.Position{X: x, Y: y}
	}

	h.mutate(w, r, "update_node", func(m *flow.Mutator) (interface{}, error) {
		if m.Document().FindNode(nodeID) == nil {
			return nil, flow.ErrNodeNotFound
		}
		m.UpdateNode(nodeID, patch)
		return m.Document().FindNode(nodeID), nil
	})
}

// RemoveNode handles DELETE /api/v1/flows/{id}/nodes/{nodeId}
func (h *Handlers) RemoveNode(w http.ResponseWriter, r *http.Request) {
	nodeID := mux.Vars(r)["nodeId"]
	h.mutate(w, r, "remove_node", func(m *flow.Mutator) (interface{}, error) {
		m.RemoveNode(nodeID)
		return m.Document(), nil
	})
}

// AddEdgeRequest is the request body for connecting two nodes.
type AddEdgeRequest struct {
	From         string           `json:"from"`
	To           string           `json:"to"`
	SourceHandle types.HandleSide `json:"sourceHandle,omitempty"`
	TargetHandle types.HandleSide `json:"targetHandle,omitempty"`
	Label        string           `json:"label,omitempty"`
}

// AddEdge handles POST /api/v1/flows/{id}/edges
func (h *Handlers) AddEdge(w http.ResponseWriter, r *http.Request) {
	var req AddEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", err)
		return
	}

	h.mutate(w, r, "add_edge", func(m *flow.Mutator) (interface{}, error) {
		return m.AddEdge(req.From, req.To, flow.EdgeOptions{
			SourceHandle: req.SourceHandle,
			TargetHandle: req.TargetHandle,
			Label:        req.Label,
		})
	})
}

// RemoveEdge handles DELETE /api/v1/flows/{id}/edges/{edgeId}
func (h *Handlers) RemoveEdge(w http.ResponseWriter, r *http.Request) {
	edgeID := mux.Vars(r)["edgeId"]
	h.mutate(w, r, "remove_edge", func(m *flow.Mutator) (interface{}, error) {
		m.RemoveEdge(edgeID)
		return m.Document(), nil
	})
}

// UpdateEdgeRequest is the request body for relabeling an edge.
type UpdateEdgeRequest struct {
	Label     *string `json:"label,omitempty"`
	Condition *string `json:"condition,omitempty"`
}

// UpdateEdge handles PATCH /api/v1/flows/{id}/edges/{edgeId}
func (h *Handlers) UpdateEdge(w http.ResponseWriter, r *http.Request) {
	edgeID := mux.Vars(r)["edgeId"]

	var req UpdateEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", err)
		return
	}

	h.mutate(w, r, "update_edge", func(m *flow.Mutator) (interface{}, error) {
		if m.Document().FindEdge(edgeID) == nil {
			return nil, flow.ErrEdgeNotFound
		}
		if req.Label != nil {
			m.UpdateEdgeLabel(edgeID, *req.Label)
		}
		if req.Condition != nil {
			m.UpdateEdgeCondition(edgeID, *req.Condition)
		}
		return m.Document().FindEdge(edgeID), nil
	})
}

// EdgeLabelRequest is the request body for relabeling an edge in place.
type EdgeLabelRequest struct {
	Label string `json:"label"`
}

// UpdateEdgeLabel handles PUT /api/v1/flows/{id}/edges/{edgeId}/label
func (h *Handlers) UpdateEdgeLabel(w http.ResponseWriter, r *http.Request) {
	edgeID := mux.Vars(r)["edgeId"]

	var req EdgeLabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", err)
		return
	}

	h.mutate(w, r, "update_edge", func(m *flow.Mutator) (interface{}, error) {
		if m.Document().FindEdge(edgeID) == nil {
			return nil, flow.ErrEdgeNotFound
		}
		m.UpdateEdgeLabel(edgeID, req.Label)
		return m.Document().FindEdge(edgeID), nil
	})
}

// PasteRequest is the request body for pasting a copied subgraph.
type PasteRequest struct {
	Nodes []types.Node `json:"nodes"`
	Edges []types.Edge `json:"edges"`
}

// Paste handles POST /api/v1/flows/{id}/paste
func (h *Handlers) Paste(w http.ResponseWriter, r *http.Request) {
	var req PasteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", err)
		return
	}

	h.mutate(w, r, "paste", func(m *flow.Mutator) (interface{}, error) {
		cb := &flow.Clipboard{Nodes: req.Nodes, Edges: req.Edges}
		ids, err := m.Paste(cb, canvas.CanvasWidth-canvas.NodeWidth, canvas.CanvasHeight-canvas.NodeHeight)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"pastedIds": ids,
			"flow":      m.Document(),
		}, nil
	})
}

// mutate loads the flow, applies one mutation under the caller's plan
// gate, persists the result, and responds with the mutation's payload.
func (h *Handlers) mutate(w http.ResponseWriter, r *http.Request, op string, fn func(*flow.Mutator) (interface{}, error)) {
	doc, ok := h.loadFlow(w, r)
	if !ok {
		return
	}

	gate := quota.ForDocument(doc, h.limits(r))
	m := flow.New(doc, gate)

	payload, err := fn(m)
	if err != nil {
		metrics.MutationsTotal.WithLabelValues(op, "refused").Inc()
		h.respondMutationError(w, r, op, err)
		return
	}

	if _, err := h.store.Save(r.Context(), doc); err != nil {
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to save flow", err)
		return
	}

	metrics.MutationsTotal.WithLabelValues(op, "ok").Inc()
	h.respondJSON(w, http.StatusOK, payload)
}

// respondMutationError maps mutation sentinels onto the error envelope.
func (h *Handlers) respondMutationError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, flow.ErrQuotaExceeded):
		metrics.QuotaRefusalsTotal.WithLabelValues(op).Inc()
		h.respondError(w, r, http.StatusForbidden, ErrCodeQuotaExceeded, "plan limit reached", err)
	case errors.Is(err, flow.ErrNodeNotFound) || errors.Is(err, flow.ErrEdgeNotFound):
		h.respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "referenced element not found", err)
	case errors.Is(err, flow.ErrStartExists):
		h.respondError(w, r, http.StatusConflict, ErrCodeConflict, "flow already has a start node", err)
	case errors.Is(err, flow.ErrSelfLoop) || errors.Is(err, flow.ErrInvalidKind):
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), err)
	default:
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "mutation failed", err)
	}
}

// --- Validation ---

// ValidateFlow handles GET /api/v1/flows/{id}/validate
func (h *Handlers) ValidateFlow(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.loadFlow(w, r)
	if !ok {
		return
	}

	result := validator.Validate(doc)
	outcome := "valid"
	if !result.Valid {
		outcome = "invalid"
	}
	metrics.ValidationsTotal.WithLabelValues(outcome).Inc()

	h.respondJSON(w, http.StatusOK, result)
}

// --- Export / Import ---

// ExportFlow handles GET /api/v1/flows/{id}/export
func (h *Handlers) ExportFlow(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.loadFlow(w, r)
	if !ok {
		return
	}

	data, err := h.exporter.Export(doc)
	if err != nil {
		metrics.ExportsTotal.WithLabelValues("export", "rejected").Inc()
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to export flow", err)
		return
	}
	metrics.ExportsTotal.WithLabelValues("export", "ok").Inc()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.ID+`.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ImportFlow handles POST /api/v1/flows/import
func (h *Handlers) ImportFlow(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "failed to read request body", err)
		return
	}

	if !h.allowNewFlow(w, r, "import") {
		return
	}

	result, err := h.exporter.Import(data, h.limits(r))
	if err != nil {
		metrics.ExportsTotal.WithLabelValues("import", "rejected").Inc()
		h.respondImportError(w, r, err)
		return
	}

	doc := result.Flow
	created, err := h.store.Insert(r.Context(), doc)
	if errors.Is(err, flowstore.ErrFlowExists) {
		// Same snapshot imported twice: admit it as a new flow.
		doc.ID = uuid.NewString()
		created, err = h.store.Insert(r.Context(), doc)
	}
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to store imported flow", err)
		return
	}

	metrics.ExportsTotal.WithLabelValues("import", "ok").Inc()
	metrics.FlowsTotal.WithLabelValues("imported").Inc()
	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"flow":   created,
		"issues": result.Issues,
	})
}

// ImportIntoFlow handles POST /api/v1/flows/{id}/import — replaces the
// flow's graph with an imported snapshot, keeping the flow's identity.
func (h *Handlers) ImportIntoFlow(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.loadFlow(w, r)
	if !ok {
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "failed to read request body", err)
		return
	}

	result, err := h.exporter.Import(data, h.limits(r))
	if err != nil {
		metrics.ExportsTotal.WithLabelValues("import", "rejected").Inc()
		h.respondImportError(w, r, err)
		return
	}

	doc := result.Flow
	doc.ID = existing.ID
	doc.CreatedAt = existing.CreatedAt
	if doc.Name == "" {
		doc.Name = existing.Name
	}

	saved, err := h.store.Save(r.Context(), doc)
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to store imported flow", err)
		return
	}

	metrics.ExportsTotal.WithLabelValues("import", "ok").Inc()
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"flow":   saved,
		"issues": result.Issues,
	})
}

func (h *Handlers) respondImportError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, flow.ErrQuotaExceeded):
		metrics.QuotaRefusalsTotal.WithLabelValues("import").Inc()
		h.respondError(w, r, http.StatusForbidden, ErrCodeQuotaExceeded, "imported flow exceeds plan limits", err)
	case errors.Is(err, exporter.ErrUnsupportedVersion):
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "unsupported export version", err)
	default:
		h.respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, "snapshot rejected", err)
	}
}

// --- Archive ---

// ArchiveFlow handles POST /api/v1/flows/{id}/archive
func (h *Handlers) ArchiveFlow(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		h.respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavail, "archive not configured", nil)
		return
	}
	doc, ok := h.loadFlow(w, r)
	if !ok {
		return
	}

	data, err := h.exporter.Export(doc)
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to export flow", err)
		return
	}

	ref, err := h.archive.Put(r.Context(), doc.ID, data)
	if err != nil {
		metrics.ArchiveUploadsTotal.WithLabelValues("error").Inc()
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to archive snapshot", err)
		return
	}
	metrics.ArchiveUploadsTotal.WithLabelValues("ok").Inc()
	h.respondJSON(w, http.StatusCreated, ref)
}

// ListArchive handles GET /api/v1/flows/{id}/archive
func (h *Handlers) ListArchive(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		h.respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavail, "archive not configured", nil)
		return
	}
	id := mux.Vars(r)["id"]

	refs, err := h.archive.List(r.Context(), id)
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to list snapshots", err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"snapshots": refs})
}

// downloadExpiry is how long presigned snapshot URLs stay valid.
const downloadExpiry = 15 * time.Minute

// DownloadArchive handles GET /api/v1/flows/{id}/archive/download?uri=...
// Backends with presigned URL support return one; others stream the
// snapshot directly.
func (h *Handlers) DownloadArchive(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		h.respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavail, "archive not configured", nil)
		return
	}
	id := mux.Vars(r)["id"]
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "uri query parameter is required", nil)
		return
	}

	// Only snapshots belonging to this flow are downloadable.
	refs, err := h.archive.List(r.Context(), id)
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to list snapshots", err)
		return
	}
	var ref *archive.Ref
	for _, c := range refs {
		if c.URI == uri {
			ref = c
			break
		}
	}
	if ref == nil {
		h.respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "snapshot not found", nil)
		return
	}

	if url, err := h.archive.PresignGet(r.Context(), ref, downloadExpiry); err == nil {
		h.respondJSON(w, http.StatusOK, map[string]string{"url": url})
		return
	}

	rc, err := h.archive.Get(r.Context(), ref)
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to fetch snapshot", err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, rc)
}

// --- Usage ---

// UsageEntry reports one metered resource.
type UsageEntry struct {
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
	Percent   int  `json:"percent"`
	NearLimit bool `json:"nearLimit"`
	AtLimit   bool `json:"atLimit"`
}

func usageEntry(used, limit int) UsageEntry {
	return UsageEntry{
		Used:      used,
		Limit:     limit,
		Percent:   quota.Percent(used, limit),
		NearLimit: quota.NearLimit(used, limit),
		AtLimit:   quota.AtLimit(used, limit),
	}
}

// Usage handles GET /api/v1/usage
func (h *Handlers) Usage(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.List(r.Context())
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to list flows", err)
		return
	}

	docs := make([]*types.Document, 0, len(summaries))
	for _, s := range summaries {
		doc, err := h.store.Get(r.Context(), s.ID)
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	snap := quota.Take(docs)
	limits := h.limits(r)

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"plan":         auth.PlanFromContext(r.Context()),
		"flows":        usageEntry(snap.Flows, limits.Flows),
		"messageNodes": usageEntry(snap.MessageNodes, limits.MessageNodes),
	})
}

// --- Simulation ---

// SimulateRequest replays a conversation against the stored flow.
// Inputs are consumed in order each time the flow waits.
type SimulateRequest struct {
	Inputs []simulator.Input `json:"inputs,omitempty"`
}

// SimulateResponse is the outcome of a replayed conversation.
type SimulateResponse struct {
	Events  []simulator.Event `json:"events"`
	Path    []string          `json:"path"`
	Vars    map[string]string `json:"vars,omitempty"`
	Ended   bool              `json:"ended"`
	Waiting types.NodeKind    `json:"waiting,omitempty"`
}

// SimulateFlow handles POST /api/v1/flows/{id}/simulate
func (h *Handlers) SimulateFlow(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.loadFlow(w, r)
	if !ok {
		return
	}

	var req SimulateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", err)
			return
		}
	}

	sess, err := simulator.NewSession(doc)
	if err != nil {
		h.respondError(w, r, http.StatusUnprocessableEntity, ErrCodeValidationFailed, "flow cannot be simulated", err)
		return
	}

	events, err := sess.Start()
	if err != nil {
		h.respondError(w, r, http.StatusUnprocessableEntity, ErrCodeValidationFailed, "simulation aborted", err)
		return
	}
	all := events

	for _, in := range req.Inputs {
		if sess.Ended() {
			break
		}
		events, err = sess.Advance(in)
		if err != nil {
			if errors.Is(err, simulator.ErrNoEdgeForOption) || errors.Is(err, simulator.ErrNotWaiting) {
				h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), err)
				return
			}
			h.respondError(w, r, http.StatusUnprocessableEntity, ErrCodeValidationFailed, "simulation aborted", err)
			return
		}
		all = append(all, events...)
	}

	for _, ev := range all {
		metrics.SimStepsTotal.WithLabelValues(string(ev.Kind)).Inc()
	}

	h.respondJSON(w, http.StatusOK, SimulateResponse{
		Events:  all,
		Path:    sess.Path(),
		Vars:    sess.Vars(),
		Ended:   sess.Ended(),
		Waiting: sess.Waiting(),
	})
}

// --- Helper Methods ---

// loadFlow fetches the flow named in the route, writing the error
// response itself on failure.
func (h *Handlers) loadFlow(w http.ResponseWriter, r *http.Request) (*types.Document, bool) {
	id := mux.Vars(r)["id"]

	doc, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, flowstore.ErrFlowNotFound) {
			h.respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "flow not found", err)
			return nil, false
		}
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to get flow", err)
		return nil, false
	}
	return doc, true
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if status >= 500 {
		h.logger.Error(message, "error", err, "status", status)
	} else {
		h.logger.Debug(message, "error", err, "status", strconv.Itoa(status))
	}

	var details map[string]interface{}
	if err != nil {
		details = map[string]interface{}{"cause": err.Error()}
	}
	writeErrorResponse(w, r, status, code, message, details)
}
