// README: Driver transport offer endpoints.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"agrimatch/internal/modules/transport"
	"agrimatch/internal/types"
)

type TransportHandler struct {
	offers *transport.Service
}

func NewTransportHandler(offers *transport.Service) *TransportHandler {
	return &TransportHandler{offers: offers}
}

type createOfferReq struct {
	VehicleType       string          `json:"vehicle_type"`
	CapacityKg        float64         `json:"capacity_kg"`
	PricePerKm        decimal.Decimal `json:"price_per_km"`
	Currency          string          `json:"currency"`
	OriginCounty      string          `json:"origin_county"`
	DestinationCounty string          `json:"destination_county"`
	ServicedRegions   []string        `json:"serviced_regions"`
	AvailableFrom     *time.Time      `json:"available_from"`
	AvailableTo       *time.Time      `json:"available_to"`
}

func (h *TransportHandler) Create(c *gin.Context) {
	var req createOfferReq
	if !bind(c, &req) {
		return
	}
	o, err := h.offers.Create(c.Request.Context(), transport.CreateCommand{
		DriverID:          caller(c),
		VehicleType:       req.VehicleType,
		CapacityKg:        req.CapacityKg,
		PricePerKm:        req.PricePerKm,
		Currency:          req.Currency,
		OriginCounty:      req.OriginCounty,
		DestinationCounty: req.DestinationCounty,
		ServicedRegions:   req.ServicedRegions,
		AvailableFrom:     req.AvailableFrom,
		AvailableTo:       req.AvailableTo,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, o)
}

func (h *TransportHandler) Get(c *gin.Context) {
	o, err := h.offers.Get(c.Request.Context(), pathID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

func (h *TransportHandler) List(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	os, err := h.offers.List(c.Request.Context(), transport.Filter{
		DriverID: types.ID(c.Query("driver_id")),
		Status:   transport.Status(c.Query("status")),
		County:   c.Query("county"),
		Limit:    limit,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"offers": os})
}

type offerStatusReq struct {
	Status transport.Status `json:"status"`
}

func (h *TransportHandler) SetStatus(c *gin.Context) {
	var req offerStatusReq
	if !bind(c, &req) {
		return
	}
	o, err := h.offers.SetStatus(c.Request.Context(), transport.SetStatusCommand{
		CallerID: caller(c),
		OfferID:  pathID(c),
		Status:   req.Status,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}
