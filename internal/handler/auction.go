package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"chemledger/internal/models"
	"chemledger/internal/repository"
	"chemledger/internal/service"
)

type AuctionHandler struct {
	Repo     repository.Repository
	Auctions *service.AuctionService
}

func (h *AuctionHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/auctions")
	group.POST("/chemical", h.openChemical)
	group.POST("/logistics", h.openLogistics)
	group.GET("/chemical", h.listChemical)
	group.GET("/logistics", h.listLogistics)
	group.GET("/:kind/:id", h.get)
	group.GET("/:kind/:id/offers", h.listOffers)
	group.POST("/:kind/:id/offers", h.placeOffer)
	group.POST("/:kind/:id/close", h.close)
}

type openChemicalAuctionRequest struct {
	ChemicalID     string          `json:"chemical_id"`
	ReferencePrice decimal.Decimal `json:"reference_price"`
}

// @Summary Open a chemical auction
// @Tags auctions
// @Accept json
// @Produce json
// @Param X-Stakeholder header string true "caller identity"
// @Param body body openChemicalAuctionRequest true "auction parameters"
// @Success 200 {object} models.ChemicalAuction
// @Router /api/v1/auctions/chemical [post]
func (h *AuctionHandler) openChemical(c *gin.Context) {
	if h.Auctions == nil {
		Error(c, http.StatusInternalServerError, "auction service unavailable", nil)
		return
	}
	var req openChemicalAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	item, err := h.Auctions.OpenChemicalAuction(c.Request.Context(), callerIdentity(c), req.ChemicalID, req.ReferencePrice)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, item, nil)
}

type openLogisticsAuctionRequest struct {
	ChemicalAuctionID uint64          `json:"chemical_auction_id"`
	ReferencePrice    decimal.Decimal `json:"reference_price"`
}

// @Summary Open a logistics auction chained to a closed chemical auction
// @Tags auctions
// @Accept json
// @Produce json
// @Param X-Stakeholder header string true "caller identity"
// @Param body body openLogisticsAuctionRequest true "auction parameters"
// @Success 200 {object} models.LogisticsAuction
// @Router /api/v1/auctions/logistics [post]
func (h *AuctionHandler) openLogistics(c *gin.Context) {
	if h.Auctions == nil {
		Error(c, http.StatusInternalServerError, "auction service unavailable", nil)
		return
	}
	var req openLogisticsAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	item, err := h.Auctions.OpenLogisticsAuction(c.Request.Context(), callerIdentity(c), req.ChemicalAuctionID, req.ReferencePrice)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, item, nil)
}

type placeOfferRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// @Summary Place an offer on an open auction
// @Tags auctions
// @Accept json
// @Produce json
// @Param X-Stakeholder header string true "caller identity"
// @Param kind path string true "auction kind (chemical|logistics)"
// @Param id path int true "auction id"
// @Param body body placeOfferRequest true "offer amount"
// @Success 200 {object} models.Offer
// @Router /api/v1/auctions/{kind}/{id}/offers [post]
func (h *AuctionHandler) placeOffer(c *gin.Context) {
	if h.Auctions == nil {
		Error(c, http.StatusInternalServerError, "auction service unavailable", nil)
		return
	}
	kind, ok := models.ParseAuctionKind(c.Param("kind"))
	if !ok {
		Error(c, http.StatusBadRequest, "unknown auction kind", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "auction id required", nil)
		return
	}
	var req placeOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	item, err := h.Auctions.PlaceOffer(c.Request.Context(), callerIdentity(c), kind, id, req.Amount)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, item, nil)
}

// @Summary Close an auction and settle its winner
// @Tags auctions
// @Produce json
// @Param X-Stakeholder header string true "caller identity"
// @Param kind path string true "auction kind (chemical|logistics)"
// @Param id path int true "auction id"
// @Success 200 {object} map[string]any
// @Router /api/v1/auctions/{kind}/{id}/close [post]
func (h *AuctionHandler) close(c *gin.Context) {
	if h.Auctions == nil {
		Error(c, http.StatusInternalServerError, "auction service unavailable", nil)
		return
	}
	kind, ok := models.ParseAuctionKind(c.Param("kind"))
	if !ok {
		Error(c, http.StatusBadRequest, "unknown auction kind", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "auction id required", nil)
		return
	}
	result, err := h.Auctions.CloseAuction(c.Request.Context(), callerIdentity(c), kind, id)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, map[string]any{
		"kind":       string(result.Kind),
		"id":         result.ID,
		"status":     string(result.Status),
		"top_bidder": result.TopBidder,
		"top_offer":  result.TopOffer.String(),
	}, nil)
}

func (h *AuctionHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	kind, ok := models.ParseAuctionKind(c.Param("kind"))
	if !ok {
		Error(c, http.StatusBadRequest, "unknown auction kind", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "auction id required", nil)
		return
	}
	switch kind {
	case models.KindChemical:
		item, err := h.Repo.GetChemicalAuctionByID(c.Request.Context(), id)
		if err != nil {
			Error(c, http.StatusBadGateway, err.Error(), nil)
			return
		}
		if item == nil {
			Error(c, http.StatusNotFound, "chemical auction not found", nil)
			return
		}
		Ok(c, item, nil)
	case models.KindLogistics:
		item, err := h.Repo.GetLogisticsAuctionByID(c.Request.Context(), id)
		if err != nil {
			Error(c, http.StatusBadGateway, err.Error(), nil)
			return
		}
		if item == nil {
			Error(c, http.StatusNotFound, "logistics auction not found", nil)
			return
		}
		Ok(c, item, nil)
	}
}

func (h *AuctionHandler) listOffers(c *gin.Context) {
	if h.Auctions == nil {
		Error(c, http.StatusInternalServerError, "auction service unavailable", nil)
		return
	}
	kind, ok := models.ParseAuctionKind(c.Param("kind"))
	if !ok {
		Error(c, http.StatusBadRequest, "unknown auction kind", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "auction id required", nil)
		return
	}
	items, err := h.Auctions.ListOffers(c.Request.Context(), kind, id)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, nil)
}

func (h *AuctionHandler) listChemical(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	params := auctionListParams(c)
	items, err := h.Repo.ListChemicalAuctions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountChemicalAuctions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(params.Limit, params.Offset, total))
}

func (h *AuctionHandler) listLogistics(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	params := auctionListParams(c)
	items, err := h.Repo.ListLogisticsAuctions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountLogisticsAuctions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(params.Limit, params.Offset, total))
}

func auctionListParams(c *gin.Context) repository.ListAuctionsParams {
	params := repository.ListAuctionsParams{
		Limit:     intQuery(c, "limit", 100),
		Offset:    intQuery(c, "offset", 0),
		Initiator: strQueryPtr(c, "initiator"),
		Chemical:  strQueryPtr(c, "chemical_id"),
		OrderBy:   "id",
		Asc:       boolPtr(false),
	}
	if val := strings.TrimSpace(c.Query("status")); val != "" {
		status := models.AuctionStatus(val)
		params.Status = &status
	}
	return params
}
