package handler

import (
	"time"

	"github.com/fasthttp/websocket"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskstream/backend/api/transport"
	"github.com/taskstream/backend/internal/ws"
)

// CloseUnauthorized is the close code for a failed token check. Clients treat
// it as non-retryable; every other close schedules a reconnect.
const CloseUnauthorized = 4001

// TokenVerifier resolves the handshake token to a user id.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// WSConfig tunes the per-connection transport.
type WSConfig struct {
	SendBuffer   int
	WriteTimeout time.Duration
}

// WSHandler upgrades /ws/tasks connections and runs their read loop. Clients
// authenticate with a token query parameter because browsers cannot set
// headers on websocket dials.
type WSHandler struct {
	logger   *zap.Logger
	registry *ws.Registry
	verifier TokenVerifier
	upgrader websocket.FastHTTPUpgrader
	cfg      WSConfig
}

func NewWSHandler(registry *ws.Registry, verifier TokenVerifier, cfg WSConfig, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		logger:   logger,
		registry: registry,
		verifier: verifier,
		cfg:      cfg,
		upgrader: websocket.FastHTTPUpgrader{
			CheckOrigin: func(ctx *fasthttp.RequestCtx) bool { return true },
		},
	}
}

// @Summary Real-time task event stream
// @Tags websocket
// @Router /ws/tasks [get]
func (h *WSHandler) Serve(ctx *fasthttp.RequestCtx) {
	token := string(ctx.QueryArgs().Peek("token"))

	err := h.upgrader.Upgrade(ctx, func(sock *websocket.Conn) {
		h.serve(sock, token)
	})
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
	}
}

func (h *WSHandler) serve(sock *websocket.Conn, token string) {
	userID, err := h.verifier.VerifyToken(token)
	if err != nil {
		// The handshake already succeeded, so the rejection travels as a
		// close frame with a distinguishable code.
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(CloseUnauthorized, "invalid or missing token")
		_ = sock.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = sock.Close()
		return
	}

	conn := ws.NewConn(userID, sock, h.cfg.SendBuffer, h.cfg.WriteTimeout, h.logger)
	h.registry.Register(conn)
	go conn.WritePump()

	defer func() {
		h.registry.Unregister(conn)
		conn.Close()
	}()

	if err := conn.Enqueue(transport.EncodeConnectionEstablished(userID)); err != nil {
		return
	}
	h.logger.Info("websocket connected", zap.String("user_id", userID))

	for {
		payload, err := conn.ReadMessage()
		if err != nil {
			h.logger.Debug("websocket closed",
				zap.String("user_id", userID), zap.Error(err))
			return
		}
		conn.Touch()

		frame, err := transport.DecodeFrame(payload)
		if err != nil {
			continue
		}
		if frame.Type == transport.MsgPing {
			_ = conn.Enqueue(transport.EncodePong())
		}
	}
}
