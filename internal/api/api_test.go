package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/zapfunnel/flow-service/internal/archive"
	"github.com/zapfunnel/flow-service/internal/auth"
	"github.com/zapfunnel/flow-service/internal/config"
	"github.com/zapfunnel/flow-service/internal/exporter"
	"github.com/zapfunnel/flow-service/internal/flowstore"
	"github.com/zapfunnel/flow-service/internal/validator"
	"github.com/zapfunnel/flow-service/pkg/types"
)

type testAPI struct {
	server  *Server
	store   *flowstore.MemoryStore
	archive *archive.MemoryStore
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	exp, err := exporter.New()
	if err != nil {
		t.Fatalf("exporter.New: %v", err)
	}

	store := flowstore.NewMemoryStore()
	arc := archive.NewMemoryStore()
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	handlers := NewHandlers(store, exp, arc, cfg, logger)
	return &testAPI{
		server:  NewServer(handlers, nil, nil),
		store:   store,
		archive: arc,
	}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.server.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func (a *testAPI) createFlow(t *testing.T, name string) types.Document {
	t.Helper()
	rec := a.do(t, "POST", "/api/v1/flows", CreateFlowRequest{Name: name})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create flow: status %d body %s", rec.Code, rec.Body.String())
	}
	return decode[types.Document](t, rec)
}

func (a *testAPI) addNode(t *testing.T, flowID string, kind types.NodeKind, x, y float64) types.Node {
	t.Helper()
	rec := a.do(t, "POST", "/api/v1/flows/"+flowID+"/nodes", AddNodeRequest{
		Kind:     kind,
		Position: types.Position{X: x, Y: y},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add %s node: status %d body %s", kind, rec.Code, rec.Body.String())
	}
	return decode[types.Node](t, rec)
}

func (a *testAPI) addEdge(t *testing.T, flowID, from, to string) types.Edge {
	t.Helper()
	rec := a.do(t, "POST", "/api/v1/flows/"+flowID+"/edges", AddEdgeRequest{From: from, To: to})
	if rec.Code != http.StatusOK {
		t.Fatalf("add edge: status %d body %s", rec.Code, rec.Body.String())
	}
	return decode[types.Edge](t, rec)
}

func TestCreateFlowSeedsStartNode(t *testing.T) {
	api := newTestAPI(t)

	doc := api.createFlow(t, "Welcome Flow")
	if doc.Name != "Welcome Flow" {
		t.Errorf("name = %q, want %q", doc.Name, "Welcome Flow")
	}
	if len(doc.Nodes) != 1 || doc.Nodes[0].Kind != types.KindStart {
		t.Fatalf("expected a single seeded start node, got %+v", doc.Nodes)
	}
}

func TestTrialFlowCap(t *testing.T) {
	api := newTestAPI(t)
	api.createFlow(t, "first")

	rec := api.do(t, "POST", "/api/v1/flows", CreateFlowRequest{Name: "second"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	resp := decode[ErrorResponse](t, rec)
	if resp.Error != ErrCodeQuotaExceeded {
		t.Errorf("error code = %q, want %q", resp.Error, ErrCodeQuotaExceeded)
	}
}

func TestMessageNodeCap(t *testing.T) {
	api := newTestAPI(t)
	doc := api.createFlow(t, "capped")

	for i := 0; i < 10; i++ {
		api.addNode(t, doc.ID, types.KindMessage, float64(i*10), 0)
	}

	rec := api.do(t, "POST", "/api/v1/flows/"+doc.ID+"/nodes", AddNodeRequest{Kind: types.KindMessage})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("11th message node: status = %d, want 403", rec.Code)
	}
	resp := decode[ErrorResponse](t, rec)
	if resp.Error != ErrCodeQuotaExceeded {
		t.Errorf("error code = %q, want %q", resp.Error, ErrCodeQuotaExceeded)
	}
}

func TestAddNodeClampsPosition(t *testing.T) {
	api := newTestAPI(t)
	doc := api.createFlow(t, "clamped")

	node := api.addNode(t, doc.ID, types.KindMessage, 99999, -50)
	if node.Position.X > 2000 || node.Position.Y < 0 {
		t.Errorf("position not clamped: %+v", node.Position)
	}
}

func TestUpdateNodePatchesDataAndPosition(t *testing.T) {
	api := newTestAPI(t)
	doc := api.createFlow(t, "edit")
	node := api.addNode(t, doc.ID, types.KindMessage, 100, 100)

	rec := api.do(t, "PATCH", "/api/v1/flows/"+doc.ID+"/nodes/"+node.ID, map[string]interface{}{
		"position": map[string]float64{"x": 300, "y": 200},
		"data":     map[string]string{"text": "Hello there"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	updated := decode[types.Node](t, rec)
	if updated.Position.X != 300 || updated.Position.Y != 200 {
		t.Errorf("position = %+v, want (300, 200)", updated.Position)
	}
	if updated.Data.Text != "Hello there" {
		t.Errorf("text = %q, want %q", updated.Data.Text, "Hello there")
	}
	if updated.Data.Label != "Message" {
		t.Errorf("label = %q, unchanged fields should survive a partial patch", updated.Data.Label)
	}
}

func TestRemoveNodeCascadesEdges(t *testing.T) {
	api := newTestAPI(t)
	doc := api.createFlow(t, "cascade")
	start := doc.Nodes[0]
	msg := api.addNode(t, doc.ID, types.KindMessage, 400, 100)
	api.addEdge(t, doc.ID, start.ID, msg.ID)

	rec := api.do(t, "DELETE", "/api/v1/flows/"+doc.ID+"/nodes/"+msg.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	after := decode[types.Document](t, rec)
	if len(after.Nodes) != 1 {
		t.Errorf("nodes = %d, want 1", len(after.Nodes))
	}
	if len(after.Edges) != 0 {
		t.Errorf("edges = %d, want 0 after cascade", len(after.Edges))
	}
}

func TestEdgeLifecycle(t *testing.T) {
	api := newTestAPI(t)
	doc := api.createFlow(t, "edges")
	start := doc.Nodes[0]
	msg := api.addNode(t, doc.ID, types.KindMessage, 400, 100)

	edge := api.addEdge(t, doc.ID, start.ID, msg.ID)

	t.Run("duplicate returns existing", func(t *testing.T) {
		again := api.addEdge(t, doc.ID, start.ID, msg.ID)
		if again.ID != edge.ID {
			t.Errorf("duplicate edge id = %q, want %q", again.ID, edge.ID)
		}
	})

	t.Run("self loop refused", func(t *testing.T) {
		rec := api.do(t, "POST", "/api/v1/flows/"+doc.ID+"/edges", AddEdgeRequest{From: msg.ID, To: msg.ID})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("label and condition", func(t *testing.T) {
		label := "Yes"
		cond := `vars.name != ""`
		rec := api.do(t, "PATCH", "/api/v1/flows/"+doc.ID+"/edges/"+edge.ID, UpdateEdgeRequest{
			Label:     &label,
			Condition: &cond,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
		}
		updated := decode[types.Edge](t, rec)
		if updated.Label != "Yes" || updated.Condition != cond {
			t.Errorf("edge = %+v", updated)
		}
	})

	t.Run("remove", func(t *testing.T) {
		rec := api.do(t, "DELETE", "/api/v1/flows/"+doc.ID+"/edges/"+edge.ID, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		after := decode[types.Document](t, rec)
		if len(after.Edges) != 0 {
			t.Errorf("edges = %d, want 0", len(after.Edges))
		}
	})
}

func TestSecondStartRefused(t *testing.T) {
	api := newTestAPI(t)
	doc := api.createFlow(t, "one start")

	rec := api.do(t, "POST", "/api/v1/flows/"+doc.ID+"/nodes", AddNodeRequest{Kind: types.KindStart})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	resp := decode[ErrorResponse](t, rec)
	if resp.Error != ErrCodeConflict {
		t.Errorf("error code = %q, want %q", resp.Error, ErrCodeConflict)
	}
}

func TestValidateEndpoint(t *testing.T) {
	api := newTestAPI(t)
	doc := api.createFlow(t, "check")
	api.addNode(t, doc.ID, types.KindMessage, 400, 100)

	rec := api.do(t, "GET", "/api/v1/flows/"+doc.ID+"/validate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	result := decode[validator.Result](t, rec)
	if !result.Valid {
		t.Error("warnings alone should not invalidate the flow")
	}
	codes := make(map[string]bool)
	for _, is := range result.Issues {
		codes[is.Code] = true
	}
	if !codes[validator.CodeUnreachable] {
		t.Errorf("issues = %+v, want an unreachable_node warning", result.Issues)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	api := newTestAPI(t)
	doc := api.createFlow(t, "portable")
	start := doc.Nodes[0]
	msg := api.addNode(t, doc.ID, types.KindMessage, 400, 100)
	end := api.addNode(t, doc.ID, types.KindEnd, 700, 100)
	api.addEdge(t, doc.ID, start.ID, msg.ID)
	api.addEdge(t, doc.ID, msg.ID, end.ID)

	rec := api.do(t, "GET", "/api/v1/flows/"+doc.ID+"/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d body %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, doc.ID) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	snapshot := rec.Body.Bytes()

	// Free the trial slot before re-importing.
	if del := api.do(t, "DELETE", "/api/v1/flows/"+doc.ID, nil); del.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", del.Code)
	}

	req := httptest.NewRequest("POST", "/api/v1/flows/import", bytes.NewReader(snapshot))
	imp := httptest.NewRecorder()
	api.server.Router().ServeHTTP(imp, req)
	if imp.Code != http.StatusCreated {
		t.Fatalf("import status = %d body %s", imp.Code, imp.Body.String())
	}

	var result struct {
		Flow types.Document `json:"flow"`
	}
	if err := json.Unmarshal(imp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode import response: %v", err)
	}
	if len(result.Flow.Nodes) != 3 || len(result.Flow.Edges) != 2 {
		t.Errorf("imported flow has %d nodes / %d edges, want 3 / 2",
			len(result.Flow.Nodes), len(result.Flow.Edges))
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest("POST", "/api/v1/flows/import", strings.NewReader(`{"version":"1"}`))
	rec := httptest.NewRecorder()
	api.server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUsageEndpoint(t *testing.T) {
	api := newTestAPI(t)
	doc := api.createFlow(t, "metered")
	api.addNode(t, doc.ID, types.KindMessage, 400, 100)

	rec := api.do(t, "GET", "/api/v1/usage", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var usage struct {
		Plan         types.PlanTier `json:"plan"`
		Flows        UsageEntry     `json:"flows"`
		MessageNodes UsageEntry     `json:"messageNodes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &usage); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if usage.Plan != types.PlanTrial {
		t.Errorf("plan = %q, want trial", usage.Plan)
	}
	if !usage.Flows.AtLimit {
		t.Errorf("flows usage %+v, want at limit", usage.Flows)
	}
	if usage.MessageNodes.Used != 1 || usage.MessageNodes.Percent != 10 {
		t.Errorf("message node usage %+v", usage.MessageNodes)
	}
}

func TestSimulateEndpoint(t *testing.T) {
	api := newTestAPI(t)
	doc := api.createFlow(t, "chat")
	start := doc.Nodes[0]
	msg := api.addNode(t, doc.ID, types.KindMessage, 400, 100)
	end := api.addNode(t, doc.ID, types.KindEnd, 700, 100)
	api.addEdge(t, doc.ID, start.ID, msg.ID)
	api.addEdge(t, doc.ID, msg.ID, end.ID)

	rec := api.do(t, "POST", "/api/v1/flows/"+doc.ID+"/simulate", SimulateRequest{})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	resp := decode[SimulateResponse](t, rec)
	if !resp.Ended {
		t.Error("linear flow should run to the end without input")
	}
	if len(resp.Path) != 3 {
		t.Errorf("path = %v, want 3 nodes", resp.Path)
	}
}

func TestArchiveEndpoints(t *testing.T) {
	api := newTestAPI(t)
	doc := api.createFlow(t, "kept")

	for i := 0; i < 2; i++ {
		rec := api.do(t, "POST", "/api/v1/flows/"+doc.ID+"/archive", nil)
		if rec.Code != http.StatusCreated {
			t.Fatalf("archive #%d: status = %d body %s", i, rec.Code, rec.Body.String())
		}
	}

	rec := api.do(t, "GET", "/api/v1/flows/"+doc.ID+"/archive", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listing struct {
		Snapshots []archive.Ref `json:"snapshots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listing.Snapshots) != 2 {
		t.Errorf("snapshots = %d, want 2", len(listing.Snapshots))
	}
}

func TestDownloadArchive(t *testing.T) {
	api := newTestAPI(t)
	doc := api.createFlow(t, "kept")

	rec := api.do(t, "POST", "/api/v1/flows/"+doc.ID+"/archive", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("archive status = %d", rec.Code)
	}
	ref := decode[archive.Ref](t, rec)

	t.Run("streams snapshot when presigning is unsupported", func(t *testing.T) {
		dl := api.do(t, "GET", "/api/v1/flows/"+doc.ID+"/archive/download?uri="+url.QueryEscape(ref.URI), nil)
		if dl.Code != http.StatusOK {
			t.Fatalf("status = %d body %s", dl.Code, dl.Body.String())
		}
		var snap struct {
			Version string `json:"version"`
		}
		if err := json.Unmarshal(dl.Body.Bytes(), &snap); err != nil {
			t.Fatalf("downloaded body is not a snapshot: %v", err)
		}
		if snap.Version == "" {
			t.Error("snapshot version missing")
		}
	})

	t.Run("unknown uri is 404", func(t *testing.T) {
		dl := api.do(t, "GET", "/api/v1/flows/"+doc.ID+"/archive/download?uri=mem://nope", nil)
		if dl.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", dl.Code)
		}
	})

	t.Run("missing uri is 400", func(t *testing.T) {
		dl := api.do(t, "GET", "/api/v1/flows/"+doc.ID+"/archive/download", nil)
		if dl.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", dl.Code)
		}
	})
}

func TestArchiveRequiresProPlan(t *testing.T) {
	exp, err := exporter.New()
	if err != nil {
		t.Fatalf("exporter.New: %v", err)
	}
	manager, err := auth.NewManager([]byte("test-secret"), "zapfunnel", time.Hour)
	if err != nil {
		t.Fatalf("auth.NewManager: %v", err)
	}
	authMW := auth.NewMiddleware(manager, &auth.MiddlewareConfig{Enabled: true})

	store := flowstore.NewMemoryStore()
	handlers := NewHandlers(store, exp, archive.NewMemoryStore(), config.Load(),
		slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	server := NewServer(handlers, authMW, nil)

	doc, err := store.Create(context.Background(), "gated")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	archiveReq := func(plan types.PlanTier) *httptest.ResponseRecorder {
		token, err := manager.Issue("u1", "u1@example.com", plan, nil)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		req := httptest.NewRequest("GET", "/api/v1/flows/"+doc.ID+"/archive", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)
		return rec
	}

	if rec := archiveReq(types.PlanTrial); rec.Code != http.StatusForbidden {
		t.Errorf("trial plan: status = %d, want 403", rec.Code)
	}
	if rec := archiveReq(types.PlanPro); rec.Code != http.StatusOK {
		t.Errorf("pro plan: status = %d, want 200", rec.Code)
	}
}

func TestFlowNotFound(t *testing.T) {
	api := newTestAPI(t)

	for _, tc := range []struct{ method, path string }{
		{"DELETE", "/api/v1/flows/missing"},
		{"GET", "/api/v1/flows/missing/validate"},
		{"POST", "/api/v1/flows/missing/simulate"},
	} {
		rec := api.do(t, tc.method, tc.path, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s: status = %d, want 404", tc.method, tc.path, rec.Code)
		}
	}
}

func TestGetFlowSeedsUnknownID(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, "GET", "/api/v1/flows/brand-new-id", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: loading must be total", rec.Code)
	}
	doc := decode[types.Document](t, rec)
	if doc.ID != "brand-new-id" {
		t.Errorf("id = %q, want the requested id", doc.ID)
	}
	if len(doc.Nodes) != 1 || doc.Nodes[0].Kind != types.KindStart {
		t.Errorf("seeded document should hold a single start node, got %+v", doc.Nodes)
	}

	// The seeded document is persisted, not synthesized per request.
	again := api.do(t, "GET", "/api/v1/flows/brand-new-id", nil)
	seeded := decode[types.Document](t, again)
	if seeded.Nodes[0].ID != doc.Nodes[0].ID {
		t.Error("second load returned a different document")
	}
}

func TestErrorResponseCarriesRequestID(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, "DELETE", "/api/v1/flows/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	resp := decode[ErrorResponse](t, rec)
	if resp.RequestID == "" {
		t.Fatal("error envelope should carry the generated request id")
	}
	if got := rec.Header().Get("X-Request-ID"); got != resp.RequestID {
		t.Errorf("header id %q != envelope id %q", got, resp.RequestID)
	}
}

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/health", "/healthz", "/ready"} {
		rec := api.do(t, "GET", path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, rec.Code)
		}
	}
}

func TestRenameFlow(t *testing.T) {
	api := newTestAPI(t)
	doc := api.createFlow(t, "old name")

	rec := api.do(t, "POST", "/api/v1/flows/"+doc.ID+"/rename", RenameFlowRequest{Name: "new name"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	renamed := decode[types.Document](t, rec)
	if renamed.Name != "new name" {
		t.Errorf("name = %q", renamed.Name)
	}
}

func TestSaveFlowBlocksOnErrors(t *testing.T) {
	api := newTestAPI(t)
	doc := api.createFlow(t, "strict")

	// A dangling edge is a validation error and must block the save.
	doc.Edges = append(doc.Edges, types.Edge{ID: "e1", From: doc.Nodes[0].ID, To: "ghost"})
	rec := api.do(t, "PUT", "/api/v1/flows/"+doc.ID, doc)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}

	// Warnings alone do not block.
	doc.Edges = nil
	doc.Nodes = append(doc.Nodes, types.Node{ID: "m1", Kind: types.KindMessage, Position: types.Position{X: 400, Y: 100}})
	rec = api.do(t, "PUT", "/api/v1/flows/"+doc.ID, doc)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
}

func TestSaveFlowRejectsUnknownKind(t *testing.T) {
	api := newTestAPI(t)
	doc := api.createFlow(t, "strict kinds")

	doc.Nodes = append(doc.Nodes, types.Node{ID: "x", Kind: types.NodeKind("banana")})
	rec := api.do(t, "PUT", "/api/v1/flows/"+doc.ID, doc)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}

	// The rejected document must not be persisted.
	got := api.do(t, "GET", "/api/v1/flows/"+doc.ID, nil)
	stored := decode[types.Document](t, got)
	for _, n := range stored.Nodes {
		if !n.Kind.Valid() {
			t.Fatalf("stored document holds invalid kind %q", n.Kind)
		}
	}
}

func TestPasteRejectsUnknownKind(t *testing.T) {
	api := newTestAPI(t)
	doc := api.createFlow(t, "strict paste")

	rec := api.do(t, "POST", "/api/v1/flows/"+doc.ID+"/paste", PasteRequest{
		Nodes: []types.Node{{ID: "x", Kind: types.NodeKind("banana")}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	resp := decode[ErrorResponse](t, rec)
	if resp.Error != ErrCodeBadRequest {
		t.Errorf("error code = %q, want %q", resp.Error, ErrCodeBadRequest)
	}
}

func TestUpdateEdgeLabelEndpoint(t *testing.T) {
	api := newTestAPI(t)
	doc := api.createFlow(t, "labels")
	msg := api.addNode(t, doc.ID, types.KindMessage, 400, 100)
	edge := api.addEdge(t, doc.ID, doc.Nodes[0].ID, msg.ID)

	rec := api.do(t, "PUT", "/api/v1/flows/"+doc.ID+"/edges/"+edge.ID+"/label", EdgeLabelRequest{Label: "next"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	updated := decode[types.Edge](t, rec)
	if updated.Label != "next" {
		t.Errorf("label = %q, want %q", updated.Label, "next")
	}
}

func TestDuplicateFlowBlockedOnTrial(t *testing.T) {
	api := newTestAPI(t)
	doc := api.createFlow(t, "solo")

	rec := api.do(t, "POST", fmt.Sprintf("/api/v1/flows/%s/duplicate", doc.ID), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 on trial flow cap", rec.Code)
	}
}
