package channel

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yajasvikhanna/Flytbase/internal/config"
	"github.com/yajasvikhanna/Flytbase/internal/domain"
	"github.com/yajasvikhanna/Flytbase/internal/pkg/errors"
	"github.com/yajasvikhanna/Flytbase/internal/pkg/logger"
	"github.com/yajasvikhanna/Flytbase/internal/pkg/worker"
)

// SnapshotFunc fetches the current status snapshot for a mission; it backs
// the initial snapshot sent right after a mission topic subscribe.
type SnapshotFunc func(ctx context.Context, missionID string) (domain.MissionStatusEvent, error)

// clientFrame is what an observer sends over the socket.
type clientFrame struct {
	Action string `json:"action"` // subscribe | unsubscribe
	Topic  string `json:"topic"`
}

// WSServer terminates observer websocket connections and bridges them onto
// the hub.
type WSServer struct {
	hub      *Hub
	snapshot SnapshotFunc
	pools    *worker.Pools
	cfg      config.ChannelConfig
	upgrader websocket.Upgrader
}

// NewWSServer creates the websocket bridge. Origin checking is delegated to
// the HTTP layer's CORS handling.
func NewWSServer(hub *Hub, snapshot SnapshotFunc, pools *worker.Pools, cfg config.ChannelConfig) *WSServer {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &WSServer{
		hub:      hub,
		snapshot: snapshot,
		pools:    pools,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handle upgrades the request and runs the connection until the peer goes
// away. organizationID is the caller's authenticated organization.
func (s *WSServer) Handle(w http.ResponseWriter, r *http.Request, organizationID string) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := s.hub.Connect(organizationID)
	logger.Info("observer connected",
		zap.String("subscriber_id", sub.ID()),
		zap.String("organization_id", organizationID))

	// The write pump owns the connection's write side for its lifetime;
	// it is detached so it survives the HTTP request context. The delivery
	// pool never queues, so a full pool turns the connection away here.
	if err := s.pools.SubmitDetached("delivery", func(ctx context.Context) {
		s.writePump(ctx, conn, sub)
	}); err != nil {
		logger.Error("could not start write pump", zap.Error(err))
		s.hub.Disconnect(sub)
		_ = conn.Close()
		return
	}

	// The read loop runs on the request goroutine.
	s.readLoop(r.Context(), conn, sub)
}

func (s *WSServer) readLoop(ctx context.Context, conn *websocket.Conn, sub *Subscriber) {
	defer func() {
		s.hub.Disconnect(sub)
		_ = conn.Close()
		logger.Info("observer disconnected", zap.String("subscriber_id", sub.ID()))
	}()

	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket read error",
					zap.String("subscriber_id", sub.ID()), zap.Error(err))
			}
			return
		}
		s.handleFrame(ctx, sub, frame)
	}
}

// handleFrame processes one client frame. Failures are reported to the
// offending connection only.
func (s *WSServer) handleFrame(ctx context.Context, sub *Subscriber, frame clientFrame) {
	topic := domain.Topic(frame.Topic)

	switch frame.Action {
	case "subscribe":
		if err := s.hub.Subscribe(ctx, sub, topic); err != nil {
			s.hub.SendError(sub, errorMessage(err))
			return
		}
		s.sendInitialSnapshot(ctx, sub, topic)

	case "unsubscribe":
		s.hub.Unsubscribe(sub, topic)

	default:
		s.hub.SendError(sub, "unknown action "+frame.Action)
	}
}

// sendInitialSnapshot delivers the mission's current state to a subscriber
// that just joined its topic, so late joiners are not blind until the next
// transition.
func (s *WSServer) sendInitialSnapshot(ctx context.Context, sub *Subscriber, topic domain.Topic) {
	if s.snapshot == nil {
		return
	}
	kind, missionID, err := topic.Parse()
	if err != nil || kind != domain.TopicMission {
		return
	}
	snap, err := s.snapshot(ctx, missionID)
	if err != nil {
		logger.Debug("initial snapshot unavailable",
			zap.String("mission_id", missionID), zap.Error(err))
		return
	}
	s.hub.Send(sub, Message{Event: domain.EventMissionStatus, Topic: topic, Payload: snap})
}

// writePump drains the mailbox onto the socket and keeps the peer alive
// with pings. It exits when the mailbox closes (disconnect or shutdown) or
// a write fails.
func (s *WSServer) writePump(ctx context.Context, conn *websocket.Conn, sub *Subscriber) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-sub.Mailbox():
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug("websocket write failed",
					zap.String("subscriber_id", sub.ID()), zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func errorMessage(err error) string {
	if appErr, ok := errors.IsAppError(err); ok {
		return appErr.Code + ": " + appErr.Message
	}
	return err.Error()
}
