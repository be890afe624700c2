// README: Produce listing endpoints and demand candidates for a listing.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"agrimatch/internal/modules/listing"
	"agrimatch/internal/modules/match"
	"agrimatch/internal/types"
)

type ListingHandler struct {
	listings *listing.Service
	matches  *match.Service
}

func NewListingHandler(listings *listing.Service, matches *match.Service) *ListingHandler {
	return &ListingHandler{listings: listings, matches: matches}
}

type createListingReq struct {
	Crop        string           `json:"crop"`
	Quantity    float64          `json:"quantity"`
	Price       *decimal.Decimal `json:"price"`
	Currency    string           `json:"currency"`
	Negotiable  bool             `json:"negotiable"`
	Description string           `json:"description"`
	Location    types.Location   `json:"location"`
	ExpiresAt   *time.Time       `json:"expires_at"`
}

func (h *ListingHandler) Create(c *gin.Context) {
	var req createListingReq
	if !bind(c, &req) {
		return
	}
	l, err := h.listings.Create(c.Request.Context(), listing.CreateCommand{
		FarmerID:    caller(c),
		Crop:        req.Crop,
		Quantity:    req.Quantity,
		Price:       req.Price,
		Currency:    req.Currency,
		Negotiable:  req.Negotiable,
		Description: req.Description,
		Location:    req.Location,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, l)
}

func (h *ListingHandler) Get(c *gin.Context) {
	l, err := h.listings.Get(c.Request.Context(), pathID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, l)
}

func (h *ListingHandler) List(c *gin.Context) {
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
	ls, err := h.listings.List(c.Request.Context(), listing.Filter{
		Crop:     c.Query("crop"),
		County:   c.Query("county"),
		Status:   listing.Status(c.Query("status")),
		FarmerID: types.ID(c.Query("farmer_id")),
		Since:    since,
		Until:    until,
		Limit:    limit,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"listings": ls})
}

type updateListingReq struct {
	Price       types.Optional[decimal.Decimal] `json:"price"`
	Negotiable  types.Optional[bool]            `json:"negotiable"`
	Description types.Optional[string]          `json:"description"`
	Promoted    types.Optional[bool]            `json:"promoted"`
	ExpiresAt   types.Optional[time.Time]       `json:"expires_at"`
}

func (h *ListingHandler) Update(c *gin.Context) {
	var req updateListingReq
	if !bind(c, &req) {
		return
	}
	l, err := h.listings.UpdateMetadata(c.Request.Context(), listing.UpdateCommand{
		CallerID:    caller(c),
		ListingID:   pathID(c),
		Price:       req.Price,
		Negotiable:  req.Negotiable,
		Description: req.Description,
		Promoted:    req.Promoted,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, l)
}

func (h *ListingHandler) Delete(c *gin.Context) {
	if err := h.listings.Delete(c.Request.Context(), caller(c), pathID(c)); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Candidates ranks open demands this listing could serve.
func (h *ListingHandler) Candidates(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	ds, err := h.matches.DemandCandidates(c.Request.Context(), match.CandidateQuery{
		CallerID: caller(c),
		TargetID: pathID(c),
		County:   c.Query("county"),
		Limit:    limit,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"candidates": ds})
}
