// README: Buyer demand endpoints and listing candidates for a demand.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"agrimatch/internal/modules/demand"
	"agrimatch/internal/modules/match"
	"agrimatch/internal/types"
)

type DemandHandler struct {
	demands *demand.Service
	matches *match.Service
}

func NewDemandHandler(demands *demand.Service, matches *match.Service) *DemandHandler {
	return &DemandHandler{demands: demands, matches: matches}
}

type createDemandReq struct {
	Crop        string           `json:"crop"`
	Quantity    float64          `json:"quantity"`
	PriceOffer  *decimal.Decimal `json:"price_offer"`
	Currency    string           `json:"currency"`
	Urgency     demand.Urgency   `json:"urgency"`
	Description string           `json:"description"`
	Location    types.Location   `json:"location"`
	ExpiresAt   *time.Time       `json:"expires_at"`
}

func (h *DemandHandler) Create(c *gin.Context) {
	var req createDemandReq
	if !bind(c, &req) {
		return
	}
	d, err := h.demands.Create(c.Request.Context(), demand.CreateCommand{
		BuyerID:     caller(c),
		Crop:        req.Crop,
		Quantity:    req.Quantity,
		PriceOffer:  req.PriceOffer,
		Currency:    req.Currency,
		Urgency:     req.Urgency,
		Description: req.Description,
		Location:    req.Location,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, d)
}

func (h *DemandHandler) Get(c *gin.Context) {
	d, err := h.demands.Get(c.Request.Context(), pathID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

func (h *DemandHandler) List(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	since, ok := queryTime(c, "since")
	if !ok {
		return
	}
	until, ok := queryTime(c, "until")
	if !ok {
		return
	}
	ds, err := h.demands.List(c.Request.Context(), demand.Filter{
		Crop:    c.Query("crop"),
		County:  c.Query("county"),
		Status:  demand.Status(c.Query("status")),
		Urgency: demand.Urgency(c.Query("urgency")),
		BuyerID: types.ID(c.Query("buyer_id")),
		Since:   since,
		Until:   until,
		Limit:   limit,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"demands": ds})
}

type updateDemandReq struct {
	PriceOffer  types.Optional[decimal.Decimal] `json:"price_offer"`
	Urgency     types.Optional[demand.Urgency]  `json:"urgency"`
	Description types.Optional[string]          `json:"description"`
	ExpiresAt   types.Optional[time.Time]       `json:"expires_at"`
}

func (h *DemandHandler) Update(c *gin.Context) {
	var req updateDemandReq
	if !bind(c, &req) {
		return
	}
	d, err := h.demands.UpdateMetadata(c.Request.Context(), demand.UpdateCommand{
		CallerID:    caller(c),
		DemandID:    pathID(c),
		PriceOffer:  req.PriceOffer,
		Urgency:     req.Urgency,
		Description: req.Description,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

func (h *DemandHandler) Withdraw(c *gin.Context) {
	if err := h.demands.Withdraw(c.Request.Context(), caller(c), pathID(c)); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DemandHandler) Delete(c *gin.Context) {
	if err := h.demands.Delete(c.Request.Context(), caller(c), pathID(c)); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Candidates ranks open listings for this demand.
func (h *DemandHandler) Candidates(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	ls, err := h.matches.ListingCandidates(c.Request.Context(), match.CandidateQuery{
		CallerID: caller(c),
		TargetID: pathID(c),
		County:   c.Query("county"),
		Limit:    limit,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"candidates": ls})
}
