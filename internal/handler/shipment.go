package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chemledger/internal/models"
	"chemledger/internal/repository"
	"chemledger/internal/service"
)

type ShipmentHandler struct {
	Repo      repository.Repository
	Shipments *service.ShipmentService
}

func (h *ShipmentHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/shipments")
	group.POST("", h.create)
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.POST("/:id/dispatch", h.dispatch)
	group.POST("/:id/transit", h.transit)
	group.POST("/:id/delivered", h.delivered)
	group.POST("/:id/failed", h.failed)
}

type createShipmentRequest struct {
	ChemicalAuctionID  uint64 `json:"chemical_auction_id"`
	LogisticsAuctionID uint64 `json:"logistics_auction_id"`
}

// @Summary Create a shipment from a settled auction pair
// @Tags shipments
// @Accept json
// @Produce json
// @Param X-Stakeholder header string true "caller identity"
// @Param body body createShipmentRequest true "settled auction pair"
// @Success 200 {object} models.Shipment
// @Router /api/v1/shipments [post]
func (h *ShipmentHandler) create(c *gin.Context) {
	if h.Shipments == nil {
		Error(c, http.StatusInternalServerError, "shipment service unavailable", nil)
		return
	}
	var req createShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	item, err := h.Shipments.Create(c.Request.Context(), callerIdentity(c), req.ChemicalAuctionID, req.LogisticsAuctionID)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, item, nil)
}

// @Summary Mark a shipment dispatched
// @Tags shipments
// @Produce json
// @Param X-Stakeholder header string true "caller identity"
// @Param id path int true "shipment id"
// @Success 200 {object} models.Shipment
// @Router /api/v1/shipments/{id}/dispatch [post]
func (h *ShipmentHandler) dispatch(c *gin.Context) {
	h.update(c, h.Shipments.Dispatch)
}

// @Summary Mark a shipment in transit
// @Tags shipments
// @Produce json
// @Param X-Stakeholder header string true "caller identity"
// @Param id path int true "shipment id"
// @Success 200 {object} models.Shipment
// @Router /api/v1/shipments/{id}/transit [post]
func (h *ShipmentHandler) transit(c *gin.Context) {
	h.update(c, h.Shipments.MarkInTransit)
}

// @Summary Mark a shipment delivered
// @Tags shipments
// @Produce json
// @Param X-Stakeholder header string true "caller identity"
// @Param id path int true "shipment id"
// @Success 200 {object} models.Shipment
// @Router /api/v1/shipments/{id}/delivered [post]
func (h *ShipmentHandler) delivered(c *gin.Context) {
	h.update(c, h.Shipments.MarkDelivered)
}

// @Summary Mark a shipment failed
// @Tags shipments
// @Produce json
// @Param X-Stakeholder header string true "caller identity"
// @Param id path int true "shipment id"
// @Success 200 {object} models.Shipment
// @Router /api/v1/shipments/{id}/failed [post]
func (h *ShipmentHandler) failed(c *gin.Context) {
	h.update(c, h.Shipments.MarkFailed)
}

type transitionFunc func(ctx context.Context, caller string, shipmentID uint64) (*models.Shipment, error)

func (h *ShipmentHandler) update(c *gin.Context, fn transitionFunc) {
	if h.Shipments == nil {
		Error(c, http.StatusInternalServerError, "shipment service unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "shipment id required", nil)
		return
	}
	item, err := fn(c.Request.Context(), callerIdentity(c), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, item, nil)
}

func (h *ShipmentHandler) get(c *gin.Context) {
	if h.Shipments == nil {
		Error(c, http.StatusInternalServerError, "shipment service unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "shipment id required", nil)
		return
	}
	item, err := h.Shipments.Get(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, item, nil)
}

func (h *ShipmentHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	params := repository.ListShipmentsParams{
		Limit:   intQuery(c, "limit", 100),
		Offset:  intQuery(c, "offset", 0),
		Party:   strQueryPtr(c, "party"),
		OrderBy: "id",
		Asc:     boolPtr(false),
	}
	if val := strings.TrimSpace(c.Query("status")); val != "" {
		status := models.ShipmentStatus(val)
		params.Status = &status
	}
	items, err := h.Repo.ListShipments(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountShipments(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(params.Limit, params.Offset, total))
}
