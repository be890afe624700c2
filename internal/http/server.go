// README: API gateway; wires module services into the gin engine.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agrimatch/internal/http/middleware"
	"agrimatch/internal/infra"
	"agrimatch/internal/modules/actor"
	"agrimatch/internal/modules/demand"
	"agrimatch/internal/modules/fanout"
	"agrimatch/internal/modules/listing"
	"agrimatch/internal/modules/match"
	"agrimatch/internal/modules/messaging"
	"agrimatch/internal/modules/review"
	"agrimatch/internal/modules/transport"
)

type ServerDeps struct {
	Actors   *actor.Service
	Listings *listing.Service
	Demands  *demand.Service
	Offers   *transport.Service
	Matches  *match.Service
	Messages *messaging.Service
	Reviews  *review.Service
	Verifier infra.TokenVerifier
	Stream   fanout.Subscriber
}

type Server struct {
	deps ServerDeps
}

func NewServer(deps ServerDeps) *Server {
	return &Server{deps: deps}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging())
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api")
	api.Use(middleware.Auth(s.deps.Verifier), middleware.ResolveActor(s.deps.Actors))
	registerRoutes(api, s.deps)
	return r
}
