package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"suchat_backend/internal/config"
	"suchat_backend/internal/handlers"
	"suchat_backend/internal/logger"
	"suchat_backend/internal/middleware"
	"suchat_backend/internal/presence"
	"suchat_backend/internal/pubsub"
	"suchat_backend/internal/queue"
	"suchat_backend/internal/routes"
	"suchat_backend/internal/services"
	"suchat_backend/internal/validator"
	"suchat_backend/internal/workers"
	"suchat_backend/ws"

	"github.com/gin-gonic/gin"
	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"
)

// Server - собранный веб-процесс: HTTP API, WebSocket-шлюз и push-воркер.
type Server struct {
	cfg        *config.Config
	infra      *Infra
	Router     *gin.Engine
	Manager    *ws.Manager
	Services   *services.ServiceContainer
	presence   presence.Registry
	fabric     pubsub.Fabric
	pushWorker *workers.PushWorker
}

func Run() {
	cfg := config.LoadConfig()
	logger.Init(cfg.Server.Env, cfg.Server.LogLevel)
	logger.Info("Logger initialized", "env", cfg.Server.Env)

	infra, err := NewInfra(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize infrastructure", "error", err)
	}
	defer infra.Close()

	srv := NewServer(cfg, infra)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx); err != nil {
		logger.Fatal("Server stopped with error", "error", err)
	}
	logger.Info("Server stopped")
}

// NewServer собирает сервисы, шлюз и роутер поверх готовой инфраструктуры.
func NewServer(cfg *config.Config, infra *Infra) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	var (
		registry presence.Registry
		fabric   pubsub.Fabric
	)
	if infra.Valkey != nil {
		instanceID := xid.New().String()
		ttl := time.Duration(cfg.Valkey.PresenceTTL) * time.Second
		registry = presence.NewValkey(infra.Valkey, cfg.Valkey.Prefix, instanceID, ttl)
		fabric = pubsub.NewValkey(infra.Valkey, cfg.Valkey.Prefix)
		logger.Info("presence and pubsub use valkey", "instance_id", instanceID)
	} else {
		registry = presence.NewLocal()
		fabric = pubsub.NewLocal()
		logger.Info("presence and pubsub are process-local")
	}

	customValidator := validator.New()
	serviceContainer := services.NewServiceContainer(infra.Store, infra.Dispatcher, cfg.Push.VAPIDPublicKey)

	manager := ws.NewManager(
		registry,
		fabric,
		serviceContainer.ChatService,
		serviceContainer.PushService,
		customValidator,
		ws.Options{
			HistoryLimit:    cfg.WS.HistoryLimit,
			MaxMessageBytes: cfg.WS.MaxMessageBytes,
			AllowedOrigins:  cfg.WS.AllowedOrigins,
		},
	)

	appHandlers := handlers.NewAppHandlers(customValidator, serviceContainer, manager)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.WS.AllowedOrigins))
	routes.RegisterRoutes(router, appHandlers, cfg.JWT.Secret)

	return &Server{
		cfg:      cfg,
		infra:    infra,
		Router:   router,
		Manager:  manager,
		Services: serviceContainer,
		presence: registry,
		fabric:   fabric,
		pushWorker: workers.NewPushWorker(infra.Queue, infra.Dispatcher, queue.WorkerOptions{
			Concurrency:  cfg.Queue.Concurrency,
			PollInterval: cfg.QueuePollInterval(),
		}),
	}
}

// Serve запускает все компоненты и блокируется до отмены ctx или первой ошибки.
// После остановки HTTP-сервер дожидается активных запросов, push-воркер -
// начатых доставок.
func (s *Server) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	httpServer := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		return s.Manager.Run(gctx)
	})

	s.pushWorker.Start(gctx)
	workers.NewPresenceWorker(s.presence, time.Duration(s.cfg.Valkey.PresenceTTL)*time.Second/3).Start(gctx)

	g.Go(func() error {
		logger.Info("Server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout())
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		s.pushWorker.Wait()
		if cerr := s.presence.Close(shutdownCtx); cerr != nil {
			logger.WorkerLog("presence", "close", cerr)
		}
		return err
	})

	return g.Wait()
}
