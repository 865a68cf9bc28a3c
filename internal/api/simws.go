package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zapfunnel/flow-service/internal/metrics"
	"github.com/zapfunnel/flow-service/internal/simulator"
	"github.com/zapfunnel/flow-service/pkg/types"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
)

// wsFrame is a server-to-client message on the simulator socket.
type wsFrame struct {
	Type    string            `json:"type"`
	Events  []simulator.Event `json:"events,omitempty"`
	Ended   bool              `json:"ended"`
	Waiting types.NodeKind    `json:"waiting,omitempty"`
	Message string            `json:"message,omitempty"`
}

// SimulateWS handles GET /api/v1/flows/{id}/simulate/ws — an
// interactive simulator session over a websocket. The server pushes
// conversation events; the client answers with simulator.Input frames
// whenever the flow waits.
func (h *Handlers) SimulateWS(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.loadFlow(w, r)
	if !ok {
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkWSOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.WSConnectionsActive.Inc()
	defer metrics.WSConnectionsActive.Dec()

	sess, err := simulator.NewSession(doc)
	if err != nil {
		h.writeWSError(conn, err.Error())
		return
	}

	metrics.SimSessionsActive.Inc()
	defer metrics.SimSessionsActive.Dec()

	// A session lives at most SimSessionTTL regardless of activity.
	expiry := time.Now().Add(h.config.SimSessionTTL)

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(readDeadline(expiry))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(readDeadline(expiry))
		return nil
	})

	events, err := sess.Start()
	if err != nil {
		h.writeWSError(conn, err.Error())
		return
	}
	if !h.writeWSEvents(conn, sess, events) {
		return
	}

	for !sess.Ended() {
		if time.Now().After(expiry) {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session expired"),
				time.Now().Add(wsWriteWait))
			return
		}

		var in simulator.Input
		conn.SetReadDeadline(readDeadline(expiry))
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("simulator socket closed", "flow_id", doc.ID, "error", err)
			}
			return
		}

		events, err := sess.Advance(in)
		if err != nil {
			if errors.Is(err, simulator.ErrNoEdgeForOption) || errors.Is(err, simulator.ErrNotWaiting) {
				// Recoverable: report and wait for another input.
				if !h.writeWSError(conn, err.Error()) {
					return
				}
				continue
			}
			h.writeWSError(conn, err.Error())
			return
		}
		if !h.writeWSEvents(conn, sess, events) {
			return
		}
	}

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "conversation ended"),
		time.Now().Add(wsWriteWait))
}

// readDeadline is the next read timeout: the keepalive window, capped
// by the session's expiry.
func readDeadline(expiry time.Time) time.Time {
	d := time.Now().Add(wsPongWait)
	if d.After(expiry) {
		return expiry
	}
	return d
}

func (h *Handlers) checkWSOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.config.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (h *Handlers) writeWSEvents(conn *websocket.Conn, sess *simulator.Session, events []simulator.Event) bool {
	for _, ev := range events {
		metrics.SimStepsTotal.WithLabelValues(string(ev.Kind)).Inc()
	}
	return h.writeWSFrame(conn, wsFrame{
		Type:    "events",
		Events:  events,
		Ended:   sess.Ended(),
		Waiting: sess.Waiting(),
	})
}

func (h *Handlers) writeWSError(conn *websocket.Conn, message string) bool {
	return h.writeWSFrame(conn, wsFrame{Type: "error", Message: message})
}

func (h *Handlers) writeWSFrame(conn *websocket.Conn, frame wsFrame) bool {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	data, err := json.Marshal(frame)
	if err != nil {
		return false
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Debug("websocket write failed", "error", err)
		return false
	}
	return true
}
