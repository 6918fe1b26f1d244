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

	firebase "firebase.google.com/go/v4"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"habitsAPI/handlers"
	"habitsAPI/internal/cache"
	"habitsAPI/internal/cloudlog"
	"habitsAPI/internal/config"
	"habitsAPI/internal/docstore"
	"habitsAPI/internal/firebaseapp"
	"habitsAPI/internal/notification"
	"habitsAPI/internal/session"
	"habitsAPI/internal/triggers"
	"habitsAPI/middleware"
	"habitsAPI/services"

	_ "net/http/pprof"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logProject := ""
	if cfg.CloudLogging {
		logProject = cfg.GCPProjectID
	}
	cloudlog.Setup(ctx, cloudlog.Options{
		ProjectID:  logProject,
		LogFile:    cfg.LogFile,
		MaxSizeMB:  50,
		MaxBackups: 5,
	})
	defer cloudlog.Close()

	var app *firebase.App
	if cfg.StoreBackend == config.BackendFirestore || cfg.AuthProvider == config.AuthFirebase {
		app, err = firebaseapp.New(ctx, firebaseapp.Credentials{
			ProjectID:  cfg.GCPProjectID,
			File:       cfg.FirebaseCredentials,
			JSONBase64: cfg.FirebaseCredentialsJSON,
		})
		if err != nil {
			cloudlog.Fatal("Failed to initialize Firebase: ", err)
		}
	}

	store := openStore(ctx, cfg, app)
	defer store.Close()

	verifier := newVerifier(ctx, cfg, app)

	var push triggers.PushSender
	if app != nil {
		fcmService, err := notification.NewFCMService(ctx, app, store)
		if err != nil {
			cloudlog.Printf("Warning: Could not initialize FCM: %v", err)
		} else {
			push = fcmService
			cloudlog.Println("FCM Push Provider initialized successfully")
		}
	}

	runner := triggers.NewRunner(store, push)
	var queue triggers.Queue
	if cfg.PubSubTopic != "" {
		ps, err := triggers.NewPubSub(ctx, cfg.GCPProjectID, cfg.PubSubTopic, cfg.PubSubSubscription)
		if err != nil {
			cloudlog.Fatal("Failed to start Pub/Sub: ", err)
		}
		defer ps.Close()
		if cfg.PubSubSubscription != "" {
			go func() {
				if err := ps.Receive(ctx, runner); err != nil && !errors.Is(err, context.Canceled) {
					cloudlog.Printf("Pub/Sub receive stopped: %v", err)
				}
			}()
		}
		queue = ps
		cloudlog.Printf("Trigger jobs go to Pub/Sub topic %s", cfg.PubSubTopic)
	} else {
		dispatcher := triggers.NewDispatcher(runner, cfg.Workers)
		defer dispatcher.Stop()
		queue = dispatcher
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	middleware.InitPrometheus(reg)
	cache.RegisterMetrics(reg)
	triggers.RegisterMetrics(reg)

	manager := services.NewSessionManager(ctx, store, session.Options{
		Location:   cfg.Location(),
		WeekWindow: cfg.WeekWindow,
	})
	defer manager.Close()
	go manager.CleanupSessions(ctx, cfg.SessionIdleTTL)

	profileService := services.NewProfileService(store)
	h := handlers.Handlers{
		Profile: handlers.NewProfileHandler(manager, profileService),
		Habit:   handlers.NewHabitHandler(manager, services.NewHabitService(store)),
		Week:    handlers.NewWeekHandler(manager, services.NewWeekService(store)),
		Journal: handlers.NewJournalHandler(manager, services.NewJournalService(store)),
		Timer:   handlers.NewTimerHandler(manager, services.NewTimerService(store)),
		Friend:  handlers.NewFriendHandler(manager, services.NewFriendService(store, queue)),
		Device:  handlers.NewDeviceHandler(manager, services.NewDeviceService(store)),
		Session: handlers.NewSessionHandler(manager),
		Live:    handlers.NewLiveHandler(manager, profileService),
	}

	r := mux.NewRouter()
	standardRouter := r.PathPrefix("/").Subrouter()

	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	go limiter.CleanupVisitors(ctx)

	standardRouter.Use(limiter.Middleware)
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass)(
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	standardRouter.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(cfg.PprofSecret)(http.DefaultServeMux))

	standardRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if _, err := store.Get(ctx, "health/ping"); err != nil && !errors.Is(err, docstore.ErrNotFound) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "store unreachable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "habits-api"}`))
	}).Methods("GET")

	// Everything under /api/v1 needs a verified token.
	protected := standardRouter.PathPrefix("/api/v1").Subrouter()
	protected.Use(middleware.AuthMiddleware(verifier))
	handlers.RegisterRoutes(protected, h)

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{cfg.AllowedOrigin}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	server := http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     corsHandler(r),
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		cloudlog.Printf("Starting server on port %s (store=%s, auth=%s)", cfg.Port, cfg.StoreBackend, cfg.AuthProvider)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			cloudlog.Fatal("Error starting server: ", err)
		}
	}()

	<-ctx.Done()
	cloudlog.Println("Got shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		cloudlog.Printf("Server shutdown error: %v", err)
	}

	cloudlog.Println("Server shutdown complete")
}

func openStore(ctx context.Context, cfg config.Config, app *firebase.App) docstore.Store {
	switch cfg.StoreBackend {
	case config.BackendFirestore:
		client, err := app.Firestore(ctx)
		if err != nil {
			cloudlog.Fatal("Failed to create Firestore client: ", err)
		}
		cloudlog.Println("Connected to Firestore")
		return docstore.NewFirestore(client)

	case config.BackendPostgres:
		store, err := docstore.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			cloudlog.Fatal("Failed to open Postgres: ", err)
		}
		cloudlog.Println("Successfully connected to Postgres")
		return store

	default:
		cloudlog.Println("Using the in-memory store, data is lost on exit")
		return docstore.NewMemory()
	}
}

func newVerifier(ctx context.Context, cfg config.Config, app *firebase.App) middleware.TokenVerifier {
	if cfg.AuthProvider == config.AuthClerk {
		cloudlog.Println("Clerk initialized successfully")
		return middleware.NewClerkVerifier(cfg.ClerkSecretKey)
	}
	verifier, err := middleware.NewFirebaseVerifier(ctx, app)
	if err != nil {
		cloudlog.Fatal("Failed to create Firebase auth client: ", err)
	}
	return verifier
}
