// Package realtime передает браузеру снимки состояния сессии по WebSocket.
package realtime

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/gorilla/websocket"

	"github.com/magabrotheeeer/auto-trigger/internal/lib/sl"
	"github.com/magabrotheeeer/auto-trigger/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Handler подписывает соединение на хранилище сессии устройства.
type Handler struct {
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// New создает Handler. Origin проверяется по умолчанию gorilla/websocket:
// Origin должен совпадать с Host.
func New(log *slog.Logger) *Handler {
	return &Handler{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeHTTP godoc
// @Summary Поток состояния сессии
// @Description WebSocket: каждое сообщение — снимок {user, loading, is_admin}.
// @Tags Session
// @Success 101 "Switching Protocols"
// @Router /realtime [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.realtime"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	p := session.MustFromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		log.Warn("websocket upgrade failed", sl.Err(err))
		return
	}
	defer conn.Close()

	snapshots, cancel := p.Store().Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	log.Debug("realtime stream opened")
	for {
		select {
		case st, ok := <-snapshots:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(st); err != nil {
				log.Debug("failed to write snapshot", sl.Err(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			log.Debug("realtime stream closed by client")
			return
		case <-r.Context().Done():
			return
		}
	}
}

// readPump обрабатывает pong и закрытие; входящие данные игнорируются.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
