// README: Match lifecycle endpoints: create, read, and one POST per transition.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"agrimatch/internal/modules/match"
	"agrimatch/internal/types"
)

type MatchHandler struct {
	matches *match.Service
}

func NewMatchHandler(matches *match.Service) *MatchHandler {
	return &MatchHandler{matches: matches}
}

type createMatchReq struct {
	ListingID      types.ID         `json:"listing_id"`
	DemandID       types.ID         `json:"demand_id"`
	AgreedPrice    *decimal.Decimal `json:"agreed_price"`
	AgreedQuantity float64          `json:"agreed_quantity"`
	Note           string           `json:"note"`
}

func (h *MatchHandler) Create(c *gin.Context) {
	var req createMatchReq
	if !bind(c, &req) {
		return
	}
	m, err := h.matches.Create(c.Request.Context(), match.CreateCommand{
		CallerID:       caller(c),
		ListingID:      req.ListingID,
		DemandID:       req.DemandID,
		AgreedPrice:    req.AgreedPrice,
		AgreedQuantity: req.AgreedQuantity,
		Note:           req.Note,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, m)
}

func (h *MatchHandler) Get(c *gin.Context) {
	m, err := h.matches.Get(c.Request.Context(), caller(c), pathID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, m)
}

func (h *MatchHandler) List(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	ms, err := h.matches.List(c.Request.Context(), caller(c), match.Filter{
		ListingID: types.ID(c.Query("listing_id")),
		DemandID:  types.ID(c.Query("demand_id")),
		Status:    match.Status(c.Query("status")),
		Limit:     limit,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"matches": ms})
}

func (h *MatchHandler) Events(c *gin.Context) {
	evs, err := h.matches.Events(c.Request.Context(), caller(c), pathID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"events": evs})
}

func (h *MatchHandler) DriverSuggestions(c *gin.Context) {
	s, err := h.matches.SuggestDrivers(c.Request.Context(), caller(c), pathID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, s)
}

// actionReq is the common body of every transition. ExpectedVersion turns
// the call into a compare-and-set against the version the client last saw.
type actionReq struct {
	ExpectedVersion *int   `json:"expected_version"`
	Note            string `json:"note"`
}

func (r actionReq) command(c *gin.Context) match.ActionCommand {
	return match.ActionCommand{
		MatchID:         pathID(c),
		CallerID:        caller(c),
		ExpectedVersion: r.ExpectedVersion,
		Note:            r.Note,
	}
}

type actionFunc func(context.Context, match.ActionCommand) (*match.Match, error)

// Action adapts a caller-only transition into a handler.
func (h *MatchHandler) Action(fn actionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req actionReq
		if !bind(c, &req) {
			return
		}
		m, err := fn(c.Request.Context(), req.command(c))
		if err != nil {
			writeServiceError(c, err)
			return
		}
		writeJSON(c, http.StatusOK, m)
	}
}

type counterOfferReq struct {
	actionReq
	AgreedPrice    decimal.Decimal `json:"agreed_price"`
	AgreedQuantity float64         `json:"agreed_quantity"`
}

func (h *MatchHandler) CounterOffer(c *gin.Context) {
	var req counterOfferReq
	if !bind(c, &req) {
		return
	}
	m, err := h.matches.CounterOffer(c.Request.Context(), match.CounterOfferCommand{
		ActionCommand:  req.command(c),
		AgreedPrice:    req.AgreedPrice,
		AgreedQuantity: req.AgreedQuantity,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, m)
}

type assignDriverReq struct {
	actionReq
	OfferID types.ID `json:"offer_id"`
}

func (h *MatchHandler) AssignDriver(c *gin.Context) {
	var req assignDriverReq
	if !bind(c, &req) {
		return
	}
	m, err := h.matches.AssignDriver(c.Request.Context(), match.AssignDriverCommand{
		ActionCommand: req.command(c),
		OfferID:       req.OfferID,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, m)
}
