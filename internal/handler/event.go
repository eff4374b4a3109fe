package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"chemledger/internal/models"
	"chemledger/internal/repository"
	"chemledger/internal/service"
)

type EventHandler struct {
	Events *service.EventService
	Logger *zap.Logger
}

func (h *EventHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/events")
	group.GET("", h.list)
	group.GET("/stream", h.stream)
}

// @Summary List audit log events
// @Tags events
// @Produce json
// @Param type query string false "event type"
// @Param actor query string false "actor identity"
// @Param entity_kind query string false "entity kind"
// @Param entity_id query int false "entity id"
// @Param since query string false "RFC3339 lower bound"
// @Success 200 {array} models.DomainEvent
// @Router /api/v1/events [get]
func (h *EventHandler) list(c *gin.Context) {
	if h.Events == nil {
		Error(c, http.StatusInternalServerError, "event service unavailable", nil)
		return
	}
	params := repository.ListEventsParams{
		Limit:      intQuery(c, "limit", 200),
		Offset:     intQuery(c, "offset", 0),
		Actor:      strQueryPtr(c, "actor"),
		EntityKind: strQueryPtr(c, "entity_kind"),
		EntityID:   uint64QueryPtr(c, "entity_id"),
		Since:      timeQueryPtr(c, "since"),
		OrderBy:    "id",
		Asc:        boolPtr(true),
	}
	if val := strings.TrimSpace(c.Query("type")); val != "" {
		eventType := models.EventType(val)
		params.Type = &eventType
	}
	items, err := h.Events.List(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Events.Count(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(params.Limit, params.Offset, total))
}

// stream upgrades to a websocket and forwards every committed event as a JSON
// message until the client disconnects.
func (h *EventHandler) stream(c *gin.Context) {
	if h.Events == nil {
		Error(c, http.StatusInternalServerError, "event service unavailable", nil)
		return
	}
	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("websocket accept failed", zap.Error(err))
		}
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	subID, events := h.Events.Subscribe()
	defer h.Events.Unsubscribe(subID)

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-events:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := wsjson.Write(writeCtx, conn, item)
			cancel()
			if err != nil {
				if h.Logger != nil {
					h.Logger.Debug("websocket subscriber gone", zap.Uint64("subscriber", subID), zap.Error(err))
				}
				return
			}
		}
	}
}
