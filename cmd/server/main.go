// @title           Community Cloud API
// @version         1.0
// @host            localhost
// @schemes         http https
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud-server/internal/api"
	"cloud-server/internal/cloud"
	"cloud-server/internal/config"
	"cloud-server/internal/database"
	"cloud-server/internal/logging"
	"cloud-server/internal/storage"
	"cloud-server/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New(true)
		bootLogger.Fatal().Err(err).Msg("cannot load configuration")
	}

	logger := logging.New(cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := pgxpool.New(ctx, cfg.DB.Source)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot connect to database")
	}
	defer dbpool.Close()

	if err := dbpool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("cannot ping database")
	}
	logger.Info().Msg("connected to database")

	localStorage, err := storage.NewLocalStorage(cfg.Storage.UploadsPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot initialize local storage")
	}
	logger.Info().Str("path", cfg.Storage.UploadsPath).Msg("uploads directory ready")

	wsHub := websocket.NewHub(logger)
	go wsHub.Run()

	store := database.NewStore(dbpool)
	quota := cloud.NewQuotaTracker(store, localStorage, cfg.Quota.DefaultLimitBytes(), logger)
	service, err := cloud.NewService(store, localStorage, quota, wsHub, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot initialize cloud service")
	}

	go quota.RunReconciler(ctx, cfg.Quota.ReconcileInterval)

	server := api.NewServer(cfg, service, wsHub, logger)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(api.MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/ws", server.ServeWsHandler)
	r.Get("/health", server.HealthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Anonymous share-link surface. Downloads with a token skip
		// auth inside the dispatch handler.
		r.Get("/cloud/share/public", server.PublicShareInfoHandler)
		r.Get("/cloud/download", server.DownloadDispatchHandler)

		r.Group(func(r chi.Router) {
			r.Use(server.AuthMiddleware)

			r.Group(func(r chi.Router) {
				r.Use(server.RequireMember)
				r.Use(middleware.Timeout(cfg.Server.RequestTimeout))

				r.Post("/cloud/folders", server.CreateFolderHandler)
				r.Get("/cloud/folders", server.ListRootHandler)
				r.Post("/cloud/upload", server.UploadFileHandler)
				r.Get("/cloud/files", server.ListFilesHandler)
				r.Delete("/cloud/files", server.DeleteFileHandler)
				r.Get("/cloud/download/shared", server.DownloadByIDHandler)
				r.Post("/cloud/share", server.ShareHandler)
				r.Get("/cloud/share", server.GetShareHandler)
				r.Post("/cloud/permissions", server.GrantPermissionHandler)
				r.Get("/cloud/permissions", server.ListPermissionsHandler)
				r.Delete("/cloud/permissions", server.RevokePermissionHandler)
				r.Get("/cloud/storage", server.GetStorageHandler)
				r.Get("/events", server.GetEventsHandler)
			})

			r.Group(func(r chi.Router) {
				r.Use(server.RequireAdmin)

				r.Post("/cloud/storage", server.SetOwnLimitHandler)
				r.Get("/admin/storage", server.AdminListStorageHandler)
				r.Post("/admin/storage", server.AdminSetLimitHandler)
				r.Post("/admin/storage/recalculate", server.AdminRecalculateHandler)
			})
		})
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
