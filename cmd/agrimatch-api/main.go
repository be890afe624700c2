// README: Entry point; loads config, wires services, starts HTTP server and the expiry sweeper.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agrimatch/internal/config"
	httptransport "agrimatch/internal/http"
	"agrimatch/internal/infra"
	"agrimatch/internal/maps"
	"agrimatch/internal/modules/expiry"
	"agrimatch/internal/modules/fanout"
	"agrimatch/internal/service"
	"agrimatch/internal/store/memory"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		log.Fatal("AGRI_FIREBASE_PROJECT is required")
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Fatalf("firebase init: %v", err)
	}

	var stores service.Stores
	switch cfg.Store.Driver {
	case "memory":
		log.Printf("using in-memory store; data is lost on restart")
		stores = service.MemoryStores(memory.New())
	default:
		dbPool, err := infra.NewDB(ctx, cfg.Store.DSN)
		if err != nil {
			log.Fatal(err)
		}
		defer dbPool.Close()
		stores = service.PostgresStores(dbPool)
	}

	// Live delivery goes through Redis when configured so every replica's
	// websocket clients see every event; otherwise an in-process hub.
	sinks := fanout.Multi{fanout.LogPublisher{}}
	var stream fanout.Subscriber
	if cfg.Redis.Addr != "" {
		redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			log.Fatal(err)
		}
		defer redisClient.Close()
		rp := fanout.NewRedisPublisher(redisClient)
		sinks = append(sinks, rp)
		stream = rp
	} else {
		hub := fanout.NewHub()
		sinks = append(sinks, hub)
		stream = hub
	}
	if len(cfg.Kafka.Brokers) > 0 {
		writer := infra.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer writer.Close()
		sinks = append(sinks, fanout.NewKafkaPublisher(writer))
	}

	distance := maps.Fallback{}
	if cfg.Maps.APIKey != "" {
		route, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			log.Fatalf("maps init: %v", err)
		}
		distance = append(distance, route)
	}
	distance = append(distance, maps.Haversine{})

	svcs := service.New(stores, service.Options{
		Publisher: sinks,
		Distance:  distance,
		MatchTTL:  cfg.Match.TTL,
	})

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Actors:   svcs.Actors,
		Listings: svcs.Listings,
		Demands:  svcs.Demands,
		Offers:   svcs.Offers,
		Matches:  svcs.Matches,
		Messages: svcs.Messages,
		Reviews:  svcs.Reviews,
		Verifier: verifier,
		Stream:   stream,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes()}

	sweeper := expiry.NewSweeper(svcs.Matches, svcs.Listings, svcs.Demands, cfg.Match.SweepInterval)
	go sweeper.Run(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
	}()

	log.Printf("agrimatch api listening on %s", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
