package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anonto42/alumni-connect/backend/internal/entity"
	"github.com/anonto42/alumni-connect/backend/internal/session"
	"github.com/anonto42/alumni-connect/backend/internal/store"
	"github.com/anonto42/alumni-connect/backend/pkg/metrics"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	changeBuffer = 64
)

// checkOrigin accepts clients that send no Origin, same-origin pages and
// the configured origins. The stream takes ?access_token=, so a page on
// another site must not be able to open it with a leaked token.
func (h *SessionHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.origins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// StreamMessage is one frame pushed to a stream client
type StreamMessage struct {
	Type     string         `json:"type"`
	State    *store.State   `json:"state,omitempty"`
	Change   *entity.Change `json:"change,omitempty"`
	Realtime string         `json:"realtime,omitempty"`
}

// Stream upgrades to a websocket and pushes the session's snapshots. A burst
// of dispatches is coalesced into one snapshot of the latest state. Change
// events are forwarded as they arrive and dropped when the client lags.
func (h *SessionHandler) Stream(c echo.Context) error {
	s, err := h.current(c)
	if err != nil {
		return err
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     h.checkOrigin,
	}
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the error response.
		log.WithError(err).Warn("failed to upgrade stream")
		return nil
	}
	defer ws.Close()

	logger := log.WithFields(logrus.Fields{"session_id": s.ID, "user_id": s.UserID})
	logger.Debug("stream client connected")
	defer logger.Debug("stream client disconnected")

	return pump(ws, s)
}

func pump(ws *websocket.Conn, s *session.Session) error {
	dirty := make(chan struct{}, 1)
	changes := make(chan entity.Change, changeBuffer)

	markDirty := func() {
		select {
		case dirty <- struct{}{}:
		default:
		}
	}
	unsubscribe := s.Store.Subscribe(func(store.Action, *store.State) { markDirty() })
	defer unsubscribe()

	if s.Realtime != nil {
		tables := append(append([]string{}, session.DataTables...), entity.TableNotifications)
		stop := s.Realtime.Subscribe(tables, func(ch entity.Change) {
			if !s.ForViewer(ch) {
				return
			}
			select {
			case changes <- ch:
			default:
				metrics.StreamMessagesTotal.WithLabelValues("change", "dropped").Inc()
			}
		})
		defer stop()
	}

	closed := make(chan struct{})
	go readUntilClosed(ws, closed)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	markDirty()
	for {
		select {
		case <-closed:
			return nil
		case <-s.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
				time.Now().Add(writeWait))
			return nil
		case <-dirty:
			if err := send(ws, StreamMessage{Type: "snapshot", State: s.Store.State(), Realtime: realtimeState(s)}); err != nil {
				return nil
			}
		case ch := <-changes:
			if err := send(ws, StreamMessage{Type: "change", Change: &ch}); err != nil {
				return nil
			}
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		}
	}
}

// readUntilClosed drains client frames so control messages are processed and
// closes done when the connection goes away.
func readUntilClosed(ws *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	ws.SetReadLimit(4096)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.NextReader(); err != nil {
			return
		}
	}
}

func send(ws *websocket.Conn, msg StreamMessage) error {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteJSON(msg); err != nil {
		log.WithError(err).Debug("failed to write stream frame")
		return err
	}
	metrics.StreamMessagesTotal.WithLabelValues(msg.Type, "sent").Inc()
	return nil
}

func realtimeState(s *session.Session) string {
	if s.Realtime == nil {
		return "DISABLED"
	}
	return string(s.Realtime.State())
}
