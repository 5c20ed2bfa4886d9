package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"keygate.backend/internal/domain/entities"
	domainerrors "keygate.backend/internal/domain/errors"
	"keygate.backend/internal/infrastructure/notification"
	"keygate.backend/internal/interfaces/http/response"
	"keygate.backend/pkg/logger"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 4096
	wsOutboxSize     = 16

	actionGetKeyStatus    = "get_key_status"
	typeKeyStatusResponse = "key_status_response"
	typeError             = "error"
)

// TopicSubscriber is implemented by notification.Hub
type TopicSubscriber interface {
	Subscribe(topic entities.Topic) *notification.Subscription
}

// SubscribeAuthorizer gates topic subscriptions by role
type SubscribeAuthorizer interface {
	CanSubscribe(role entities.UserRole, topic entities.Topic) bool
}

// KeyStatusReader answers get_key_status requests
type KeyStatusReader interface {
	KeyStatus(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.KeyView, error)
}

type wsRequest struct {
	Action string `json:"action"`
	KeyID  string `json:"key_id"`
}

type keyStatusResponse struct {
	Type          string             `json:"type"`
	KeyID         uuid.UUID          `json:"key_id"`
	Status        entities.KeyStatus `json:"status"`
	RemainingDays *int               `json:"remaining_days"`
	Timestamp     time.Time          `json:"timestamp"`
}

type wsErrorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestHandler turns one client frame into an optional reply.
type requestHandler func(ctx context.Context, actor entities.Actor, raw []byte) (interface{}, bool)

// WSHandler streams status events to websocket subscribers
type WSHandler struct {
	hub      TopicSubscriber
	authz    SubscribeAuthorizer
	keys     KeyStatusReader
	upgrader websocket.Upgrader
	now      func() time.Time
}

// NewWSHandler creates a websocket handler
func NewWSHandler(hub TopicSubscriber, authz SubscribeAuthorizer, keys KeyStatusReader) *WSHandler {
	return &WSHandler{
		hub:   hub,
		authz: authz,
		keys:  keys,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients authenticate with a bearer token, never a cookie.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Keys subscribes to key_status_updates and answers get_key_status
// GET /ws/keys
func (h *WSHandler) Keys(c *gin.Context) {
	h.serve(c, entities.TopicKeyStatus, h.handleKeyRequest)
}

// Users subscribes to user_status_updates
// GET /ws/users
func (h *WSHandler) Users(c *gin.Context) {
	h.serve(c, entities.TopicUserStatus, nil)
}

func (h *WSHandler) serve(c *gin.Context, topic entities.Topic, handle requestHandler) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if !h.authz.CanSubscribe(actor.Role, topic) {
		response.Error(c, domainerrors.Forbidden("Not allowed to subscribe to "+string(topic)))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already replied with an HTTP error.
		logger.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}

	ctx := c.Request.Context()
	log := logger.Category(ctx, "system").With(zap.String("topic", string(topic)))
	log.Info("websocket subscriber connected")

	sub := h.hub.Subscribe(topic)
	defer sub.Close()

	outbox := make(chan interface{}, wsOutboxSize)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		if err := writeLoop(conn, sub, outbox); err != nil {
			log.Debug("websocket writer stopped", zap.Error(err))
		}
	}()

	h.readLoop(ctx, conn, actor, handle, outbox, writerDone)
	close(outbox)
	<-writerDone
	log.Info("websocket subscriber disconnected")
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, actor entities.Actor, handle requestHandler, outbox chan<- interface{}, writerDone <-chan struct{}) {
	defer conn.Close()

	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if handle == nil {
			continue
		}
		reply, ok := handle(ctx, actor, raw)
		if !ok {
			continue
		}
		select {
		case outbox <- reply:
		case <-writerDone:
			return
		}
	}
}

// writeLoop is the only goroutine that writes to conn.
func writeLoop(conn *websocket.Conn, sub *notification.Subscription, outbox <-chan interface{}) error {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-sub.C:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return errors.New("subscription closed")
			}
			if err := writeJSON(conn, event); err != nil {
				return err
			}
		case reply, ok := <-outbox:
			if !ok {
				return nil
			}
			if err := writeJSON(conn, reply); err != nil {
				return err
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(v)
}

// handleKeyRequest answers get_key_status after a lazy expiry check.
// Malformed frames and unknown actions are ignored.
func (h *WSHandler) handleKeyRequest(ctx context.Context, actor entities.Actor, raw []byte) (interface{}, bool) {
	var req wsRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.Action != actionGetKeyStatus || req.KeyID == "" {
		return nil, false
	}
	id, err := uuid.Parse(req.KeyID)
	if err != nil {
		return wsErrorFrame{Type: typeError, Code: domainerrors.CodeBadRequest, Message: "invalid key_id"}, true
	}

	view, err := h.keys.KeyStatus(ctx, actor, id)
	if err != nil {
		appErr := domainerrors.FromError(err)
		return wsErrorFrame{Type: typeError, Code: appErr.Code, Message: appErr.Message}, true
	}

	return keyStatusResponse{
		Type:          typeKeyStatusResponse,
		KeyID:         view.ID,
		Status:        view.Status,
		RemainingDays: view.RemainingDays,
		Timestamp:     h.now(),
	}, true
}
