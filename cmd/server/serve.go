package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/alumni-connect/backend/internal/entity"
	"github.com/anonto42/alumni-connect/backend/internal/fetchers"
	"github.com/anonto42/alumni-connect/backend/internal/realtime"
	"github.com/anonto42/alumni-connect/backend/internal/refetch"
	"github.com/anonto42/alumni-connect/backend/internal/repositories"
	"github.com/anonto42/alumni-connect/backend/internal/router"
	"github.com/anonto42/alumni-connect/backend/internal/session"
	"github.com/anonto42/alumni-connect/backend/pkg/config"
	"github.com/anonto42/alumni-connect/backend/pkg/firebase"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	db, err := config.InitDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}
	defer db.CloseDB()

	if runMigrations, _ := cmd.Flags().GetBool("migrate"); runMigrations {
		if err := migrate(ctx, db); err != nil {
			return err
		}
	}

	// Initialize Firebase
	var verifier firebase.TokenVerifier
	if cfg.AuthMode != "jwt" {
		app, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			return fmt.Errorf("failed to initialize Firebase: %w", err)
		}
		verifier = app.Verifier()
	}

	// --- Initialize Repositories ---
	repos := session.Repositories{
		Alumni:        repositories.NewPostgresAlumniRepository(db.Postgres),
		Jobs:          repositories.NewPostgresJobRepository(db.Postgres),
		Events:        repositories.NewPostgresEventRepository(db.Postgres),
		Posts:         repositories.NewMongoPostRepository(db.MongoDB),
		Comments:      repositories.NewPostgresCommentRepository(db.Postgres),
		Likes:         repositories.NewPostgresLikeRepository(db.Postgres),
		Saved:         repositories.NewPostgresSavedJobRepository(db.Postgres),
		Registrations: repositories.NewPostgresRegistrationRepository(db.Postgres),
		Connections:   repositories.NewPostgresConnectionRepository(db.Postgres),
		Notifications: repositories.NewPostgresNotificationRepository(db.Postgres, db.Redis),
	}
	normalizer := fetchers.NewNormalizer(repos.Alumni)

	sessions := session.NewManager(
		session.RepositoryFactory(repos, normalizer, changeFeed(db), cfg.PageSize),
		sessionConfig(),
	)
	defer sessions.Shutdown()

	e := echo.New()
	e.HideBanner = true
	config.SetupMiddleware(e, cfg.AllowedOrigins)
	router.SetupRoutes(e, router.Deps{
		Config:     cfg,
		Alumni:     repos.Alumni,
		Verifier:   verifier,
		Sessions:   sessions,
		Normalizer: normalizer,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("port", cfg.Port).Info("HTTP server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	var metricsSrv *http.Server
	if cfg.MetricsPort != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: ":" + cfg.MetricsPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.WithField("port", cfg.MetricsPort).Info("Metrics server listening")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// End sessions first so open streams receive their close frame.
		sessions.Shutdown()
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// changeFeed routes each table to the backend that announces its changes.
// Posts live in MongoDB; notifications go through Redis when it is configured.
func changeFeed(db *config.DB) realtime.Feed {
	pg := &realtime.PostgresFeed{Pool: db.Listen, Channel: cfg.ChangeChannel}
	routes := map[string]realtime.Feed{
		entity.TablePosts:         &realtime.MongoFeed{DB: db.MongoDB},
		entity.TableJobs:          pg,
		entity.TableEvents:        pg,
		entity.TableUsers:         pg,
		entity.TableComments:      pg,
		entity.TableNotifications: pg,
	}
	if db.Redis != nil {
		routes[entity.TableNotifications] = &realtime.RedisFeed{Client: db.Redis}
	}
	return &realtime.MultiFeed{Routes: routes}
}

func sessionConfig() session.Config {
	rt := realtime.DefaultConfig()
	rt.SubscribeTimeout = cfg.SubscribeTimeout
	rt.BackoffBase = cfg.BackoffBase
	rt.BackoffMax = cfg.BackoffMax

	return session.Config{
		ToastTTL: cfg.ToastTTL,
		Realtime: rt,
		Refetch: refetch.Config{
			Debounce: cfg.SearchDebounce,
			Refresh:  cfg.RefreshSchedule,
		},
	}
}
