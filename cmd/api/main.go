package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bus_tracker_go_backend/cmd/api/config"
	"bus_tracker_go_backend/internal/api"
	"bus_tracker_go_backend/internal/auth"
	"bus_tracker_go_backend/internal/database"
	"bus_tracker_go_backend/internal/services"
	"bus_tracker_go_backend/internal/utils/broker"
	"bus_tracker_go_backend/internal/wsocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	db, err := database.InitDB(cfg.DSN(), 10, 3*time.Second)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// Socket side
	registry := wsocket.NewRegistry()
	busDirectory := services.NewBusDirectory(db)
	router := wsocket.NewRouter(registry, busDirectory)
	dispatcher := wsocket.NewDispatcher(registry)
	messageBroker := broker.NewBroker(cfg.SendBufferSize)

	// Internal services
	verifier := auth.NewTokenVerifier(cfg.JWTSecret)
	userService := services.NewUserService(db)
	locationService := services.NewLocationService(services.NewLocationStore(db), busDirectory, dispatcher)
	requestService := services.NewRequestService(services.NewRequestStore(db), busDirectory, wsocket.NewRequestNotifier(messageBroker))

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), api.RequestLogger())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// Same allow-list as CORS.
		CheckOrigin: originChecker(cfg.AllowedOrigins),
	}
	wsHandler := wsocket.NewHandler(upgrader, verifier, registry, router, messageBroker, wsocket.Settings{
		SubscribeTimeout: cfg.SubscribeTimeout,
		WriteWait:        cfg.WriteWait,
		PongWait:         cfg.PongWait,
		SendBufferSize:   cfg.SendBufferSize,
	})

	api.SetupRoutes(r, verifier, locationService, requestService)
	auth.SetupRoutes(r, verifier, userService)
	r.GET("/ws", func(c *gin.Context) {
		wsHandler.HandleWebSocket(c.Writer, c.Request)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down")
		closed := registry.CloseAll(websocket.CloseGoingAway, "server shutting down")
		log.Info().Int("sockets", closed).Msg("Sockets closed")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Server stopped with error")
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Info().Msg("Server stopped")
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
