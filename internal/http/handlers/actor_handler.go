// README: Actor profile, verification and review-history endpoints.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agrimatch/internal/modules/actor"
	"agrimatch/internal/modules/review"
	"agrimatch/internal/types"
)

type ActorHandler struct {
	actors  *actor.Service
	reviews *review.Service
}

func NewActorHandler(actors *actor.Service, reviews *review.Service) *ActorHandler {
	return &ActorHandler{actors: actors, reviews: reviews}
}

type profileReq struct {
	Name        types.Optional[string]       `json:"name"`
	Phone       types.Optional[string]       `json:"phone"`
	County      types.Optional[string]       `json:"county"`
	Point       types.Optional[types.Point]  `json:"point"`
	Roles       types.Optional[[]actor.Role] `json:"roles"`
	PrimaryRole types.Optional[actor.Role]   `json:"primary_role"`
}

func (r profileReq) update() actor.ProfileUpdate {
	return actor.ProfileUpdate{
		Name:        r.Name,
		Phone:       r.Phone,
		County:      r.County,
		Point:       r.Point,
		Roles:       r.Roles,
		PrimaryRole: r.PrimaryRole,
	}
}

func (h *ActorHandler) Me(c *gin.Context) {
	a, err := h.actors.Get(c.Request.Context(), caller(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, a)
}

func (h *ActorHandler) Get(c *gin.Context) {
	a, err := h.actors.Get(c.Request.Context(), pathID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, a)
}

// UpdateMe and Update share one body; Update targets another actor and
// needs admin rights.
func (h *ActorHandler) UpdateMe(c *gin.Context) {
	h.update(c, caller(c))
}

func (h *ActorHandler) Update(c *gin.Context) {
	h.update(c, pathID(c))
}

func (h *ActorHandler) update(c *gin.Context, target types.ID) {
	var req profileReq
	if !bind(c, &req) {
		return
	}
	a, err := h.actors.UpdateProfile(c.Request.Context(), actor.UpdateProfileCommand{
		CallerID: caller(c),
		TargetID: target,
		Update:   req.update(),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, a)
}

type verificationReq struct {
	Verification actor.Verification `json:"verification"`
}

func (h *ActorHandler) SetVerification(c *gin.Context) {
	var req verificationReq
	if !bind(c, &req) {
		return
	}
	a, err := h.actors.SetVerification(c.Request.Context(), actor.SetVerificationCommand{
		CallerID:     caller(c),
		TargetID:     pathID(c),
		Verification: req.Verification,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, a)
}

func (h *ActorHandler) Reviews(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	rs, err := h.reviews.ListForActor(c.Request.Context(), pathID(c), limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"reviews": rs})
}
