// README: HTTP route registration.
package http

import (
	"github.com/gin-gonic/gin"

	"agrimatch/internal/http/handlers"
)

func registerRoutes(api *gin.RouterGroup, d ServerDeps) {
	actors := handlers.NewActorHandler(d.Actors, d.Reviews)
	api.GET("/me", actors.Me)
	api.PATCH("/me", actors.UpdateMe)
	api.GET("/actors/:id", actors.Get)
	api.PATCH("/actors/:id", actors.Update)
	api.PUT("/actors/:id/verification", actors.SetVerification)
	api.GET("/actors/:id/reviews", actors.Reviews)

	listings := handlers.NewListingHandler(d.Listings, d.Matches)
	api.POST("/listings", listings.Create)
	api.GET("/listings", listings.List)
	api.GET("/listings/:id", listings.Get)
	api.PATCH("/listings/:id", listings.Update)
	api.DELETE("/listings/:id", listings.Delete)
	api.GET("/listings/:id/candidates", listings.Candidates)

	demands := handlers.NewDemandHandler(d.Demands, d.Matches)
	api.POST("/demands", demands.Create)
	api.GET("/demands", demands.List)
	api.GET("/demands/:id", demands.Get)
	api.PATCH("/demands/:id", demands.Update)
	api.DELETE("/demands/:id", demands.Delete)
	api.POST("/demands/:id/withdraw", demands.Withdraw)
	api.GET("/demands/:id/candidates", demands.Candidates)

	offers := handlers.NewTransportHandler(d.Offers)
	api.POST("/transport-offers", offers.Create)
	api.GET("/transport-offers", offers.List)
	api.GET("/transport-offers/:id", offers.Get)
	api.PUT("/transport-offers/:id/status", offers.SetStatus)

	matches := handlers.NewMatchHandler(d.Matches)
	api.POST("/matches", matches.Create)
	api.GET("/matches", matches.List)
	api.GET("/matches/:id", matches.Get)
	api.GET("/matches/:id/events", matches.Events)
	api.GET("/matches/:id/driver-suggestions", matches.DriverSuggestions)
	api.POST("/matches/:id/counter-offer", matches.CounterOffer)
	api.POST("/matches/:id/accept", matches.Action(d.Matches.Accept))
	api.POST("/matches/:id/assign-driver", matches.AssignDriver)
	api.POST("/matches/:id/driver-accept", matches.Action(d.Matches.DriverAccept))
	api.POST("/matches/:id/driver-reject", matches.Action(d.Matches.DriverReject))
	api.POST("/matches/:id/reopen", matches.Action(d.Matches.Reopen))
	api.POST("/matches/:id/start-transit", matches.Action(d.Matches.StartTransit))
	api.POST("/matches/:id/complete", matches.Action(d.Matches.Complete))
	api.POST("/matches/:id/cancel", matches.Action(d.Matches.Cancel))
	api.POST("/matches/:id/driver-cancellation", matches.Action(d.Matches.RequestDriverCancellation))
	api.POST("/matches/:id/driver-cancellation/approve", matches.Action(d.Matches.ApproveDriverCancellation))
	api.POST("/matches/:id/driver-cancellation/reject", matches.Action(d.Matches.RejectDriverCancellation))

	messages := handlers.NewMessageHandler(d.Messages, d.Reviews)
	api.POST("/matches/:id/messages", messages.Send)
	api.GET("/matches/:id/messages", messages.Thread)
	api.POST("/matches/:id/messages/read", messages.MarkRead)
	api.POST("/matches/:id/reviews", messages.Review)

	stream := handlers.NewStreamHandler(d.Stream, d.Matches)
	api.GET("/stream", stream.Stream)
}
