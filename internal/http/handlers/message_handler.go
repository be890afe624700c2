// README: Match-scoped messaging and review endpoints.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agrimatch/internal/modules/messaging"
	"agrimatch/internal/modules/review"
	"agrimatch/internal/types"
)

type MessageHandler struct {
	messages *messaging.Service
	reviews  *review.Service
}

func NewMessageHandler(messages *messaging.Service, reviews *review.Service) *MessageHandler {
	return &MessageHandler{messages: messages, reviews: reviews}
}

type sendMessageReq struct {
	RecipientID types.ID `json:"recipient_id"`
	Body        string   `json:"body"`
}

func (h *MessageHandler) Send(c *gin.Context) {
	var req sendMessageReq
	if !bind(c, &req) {
		return
	}
	msg, err := h.messages.Send(c.Request.Context(), messaging.SendCommand{
		MatchID:     pathID(c),
		SenderID:    caller(c),
		RecipientID: req.RecipientID,
		Body:        req.Body,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, msg)
}

func (h *MessageHandler) Thread(c *gin.Context) {
	msgs, err := h.messages.Thread(c.Request.Context(), caller(c), pathID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"messages": msgs})
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	n, err := h.messages.MarkRead(c.Request.Context(), caller(c), pathID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"marked": n})
}

type reviewReq struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *MessageHandler) Review(c *gin.Context) {
	var req reviewReq
	if !bind(c, &req) {
		return
	}
	r, err := h.reviews.Create(c.Request.Context(), review.CreateCommand{
		MatchID:    pathID(c),
		ReviewerID: caller(c),
		Rating:     req.Rating,
		Comment:    req.Comment,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, r)
}
