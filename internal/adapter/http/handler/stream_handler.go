package handler

import (
	"net/http"
	"time"

	"courier-dispatch/internal/adapter/http/dto"
	"courier-dispatch/internal/adapter/http/middleware"
	"courier-dispatch/internal/core/domain"
	"courier-dispatch/internal/core/ports"
	"courier-dispatch/pkg/apperror"
	"courier-dispatch/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 30 * time.Second
	streamBuffer     = 16

	// StreamSnapshot is the type of the first frame on a stream.
	StreamSnapshot = "snapshot"
)

// EventSource is satisfied by the in-process event bus.
type EventSource interface {
	Subscribe(fn func(domain.DeliveryEvent)) func()
}

// StreamHandler pushes the events of one delivery over a websocket.
type StreamHandler struct {
	deliveries ports.DeliveryService
	events     EventSource
	upgrader   websocket.Upgrader
	pingPeriod time.Duration
	log        zerolog.Logger
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(deliveries ports.DeliveryService, events EventSource, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		deliveries: deliveries,
		events:     events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Auth is a bearer token, not a cookie.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pingPeriod: streamPingPeriod,
		log:        log,
	}
}

// Stream handles GET /api/v1/deliveries/:id/stream. The first frame is a
// snapshot of the delivery; each later frame is one event. The server closes
// the stream once the delivery reaches a terminal status.
func (h *StreamHandler) Stream(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	id := c.Param("id")

	// Subscribe before loading so nothing between snapshot and stream is lost.
	send := make(chan domain.DeliveryEvent, streamBuffer)
	unsubscribe := h.events.Subscribe(func(ev domain.DeliveryEvent) {
		if ev.DeliveryID != id {
			return
		}
		select {
		case send <- ev:
		default:
			h.log.Warn().Str("delivery_id", id).Msg("stream client too slow, event dropped")
		}
	})
	defer unsubscribe()

	d, err := visibleDelivery(c.Request.Context(), h.deliveries, user, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("delivery_id", id).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go h.readPump(conn, closed)

	if err := h.write(conn, dto.StreamMessage{Type: StreamSnapshot, Delivery: d}); err != nil {
		return
	}
	if d.Status.IsTerminal() {
		h.closeNormal(conn)
		return
	}

	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev := <-send:
			if err := h.write(conn, dto.StreamMessage{Type: string(ev.Type), Event: &ev}); err != nil {
				return
			}
			if ev.Status.IsTerminal() {
				h.closeNormal(conn)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

// readPump discards client frames and signals when the peer goes away.
func (h *StreamHandler) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHandler) write(conn *websocket.Conn, msg dto.StreamMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.log.Debug().Err(err).Msg("stream write failed")
		return err
	}
	return nil
}

func (h *StreamHandler) closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "delivery finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
}
