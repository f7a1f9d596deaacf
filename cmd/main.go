package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pscprep/examengine/config"
	"github.com/pscprep/examengine/database"
	"github.com/pscprep/examengine/internal/api"
	"github.com/pscprep/examengine/internal/cache"
	"github.com/pscprep/examengine/internal/controller"
	"github.com/pscprep/examengine/internal/logger"
	"github.com/pscprep/examengine/internal/network"
	"github.com/pscprep/examengine/internal/repository"
	"github.com/pscprep/examengine/internal/service"
	"github.com/pscprep/examengine/internal/storage"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"
)

func main() {
	logger.Init()

	app := fx.New(
		// Core application components
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
			NewGinEngine,
			func(db *sql.DB) storage.Store { return storage.NewSQLite(db) },
			func(store storage.Store) *cache.ResponseCache { return cache.New(store, time.Now) },
			func() *network.Monitor { return network.NewMonitor(nil) },
			api.NewClient,
		),

		// Repositories layer
		fx.Provide(
			repository.NewAttemptStateRepository,
			func(store storage.Store) repository.PendingOperationRepository {
				return repository.NewPendingOperationRepository(store, time.Now)
			},
		),

		// Services layer
		fx.Provide(
			func(pendingRepo repository.PendingOperationRepository, client *api.Client) service.SyncService {
				return service.NewSyncService(pendingRepo, client)
			},
			func(
				client *api.Client,
				stateRepo repository.AttemptStateRepository,
				pendingRepo repository.PendingOperationRepository,
				monitor *network.Monitor,
			) service.SubmissionService {
				return service.NewSubmissionService(client, stateRepo, pendingRepo, monitor)
			},
			func(
				client *api.Client,
				stateRepo repository.AttemptStateRepository,
				submitter service.SubmissionService,
				monitor *network.Monitor,
			) *service.SessionManager {
				return service.NewSessionManager(service.SessionDeps{
					API:       client,
					StateRepo: stateRepo,
					Submitter: submitter,
					Monitor:   monitor,
					Now:       time.Now,
				})
			},
			func(client *api.Client) service.CatalogService {
				return service.NewCatalogService(client)
			},
			func(client *api.Client, store storage.Store, cfg *config.Config) service.ContentService {
				return service.NewContentService(client, store, cfg.Cache.QuestionTTL, time.Now)
			},
		),

		// Bridge controller
		fx.Provide(controller.NewController),

		fx.Invoke(WireConnectivity),
		fx.Invoke(RegisterRoutesAndStartServer),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")
}

func NewGinEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	// The bridge only serves the embedding shell on localhost, but dev
	// builds hit it from a browser-based debugger.
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	return r
}

// WireConnectivity completes the monitor <-> client cycle and hooks queue
// draining onto the reconnect edge. Startup also prunes expired offline
// packs and flushes anything queued by a previous run.
func WireConnectivity(
	monitor *network.Monitor,
	client *api.Client,
	syncSvc service.SyncService,
	contentSvc service.ContentService,
) {
	monitor.SetProber(client)
	monitor.OnReconnect(func() {
		go syncSvc.Flush(context.Background())
	})

	contentSvc.PruneExpired()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		monitor.Recheck(ctx)
		if monitor.IsOnline() {
			syncSvc.Flush(ctx)
		}
	}()
}

// RegisterRoutesAndStartServer configures bridge routes and manages the
// server lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	ctrl *controller.Controller,
	db *sql.DB,
) {
	ctrl.RegisterRoutes(router)

	server := &http.Server{
		Addr:    "127.0.0.1:" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Exam engine bridge starting on port %s", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return db.Close()
		},
	})
}
