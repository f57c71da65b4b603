package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tailorshop/internal/config"
	"tailorshop/internal/database"
	"tailorshop/internal/handler"
	"tailorshop/internal/model"
	"tailorshop/internal/mw"
	"tailorshop/internal/service"
	"tailorshop/internal/worker"
)

func main() {
	cfg := config.New()

	db, err := database.NewDB(context.Background(), cfg.DatabaseURI)
	if err != nil {
		slog.Error("failed to connect to DB", "error", err)
		os.Exit(1)
	}
	defer database.CloseDB(db)

	if err := database.InitSchema(db); err != nil {
		slog.Error("failed to init DB schema", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		slog.Error("failed to create upload dir", "dir", cfg.UploadDir, "error", err)
		os.Exit(1)
	}

	// Services
	changes := service.NewBroadcaster()
	emailClient := service.NewEmailClient(cfg.EmailAPIURL, cfg.EmailAPIKey)
	photoStore := service.NewPhotoStore(cfg.UploadDir, cfg.PublicBaseURL)
	authSvc := service.NewAuthService(db, emailClient, cfg.ResetURL)
	orderSvc := service.NewOrderService(db, changes, photoStore)
	customerSvc := service.NewCustomerService(db)
	orderSource := service.NewOrderSource(orderSvc, changes, cfg.PollInterval)

	// Worker
	hub := worker.NewSessionHub(orderSource, worker.HubConfig{
		DueWarningDays: cfg.DueWarningDays,
		DueUrgentDays:  cfg.DueUrgentDays,
		ReconnectDelay: cfg.ReconnectDelay,
		IdleTimeout:    cfg.SessionIdleTimeout,
	})

	authLimiter := mw.NewRateLimiter(1, 5)

	// Router
	r := chi.NewRouter()

	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(mw.CORS(cfg.AllowedOrigins))

	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(authLimiter.Middleware)

		r.Post("/api/customers/register", handler.RegisterCustomerHandler(authSvc, hub, cfg.JWTSecret))
		r.Post("/api/tailors/register", handler.RegisterTailorHandler(authSvc))
		r.Post("/api/login", handler.LoginHandler(authSvc, hub, cfg.JWTSecret))
		r.Post("/api/password/reset", handler.PasswordResetHandler(authSvc))
		r.Post("/api/password/reset/confirm", handler.PasswordResetConfirmHandler(authSvc))
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.JWTSecret))

		r.Post("/api/logout", handler.LogoutHandler(hub))

		r.Get("/api/orders", handler.ListOrdersHandler(orderSvc))
		r.Get("/api/orders/{id}", handler.GetOrderHandler(orderSvc))

		r.Get("/api/notifications", handler.ListNotificationsHandler(hub))
		r.Post("/api/notifications/read", handler.MarkNotificationsReadHandler(hub))
		r.Delete("/api/notifications/{id}", handler.DismissNotificationHandler(hub))
		r.Delete("/api/notifications", handler.ClearNotificationsHandler(hub))

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(model.RoleCustomer))

			r.Post("/api/orders", handler.CreateOrderHandler(orderSvc, customerSvc))
			r.Put("/api/orders/{id}", handler.UpdateOrderHandler(orderSvc))
			r.Post("/api/orders/{id}/photos", handler.UploadPhotosHandler(orderSvc, photoStore))
			r.Get("/api/profile", handler.ProfileHandler(customerSvc))
			r.Put("/api/profile/measurements", handler.SaveMeasurementsHandler(customerSvc))
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(model.RoleTailor))

			r.Post("/api/orders/manual", handler.ManualOrderHandler(orderSvc, customerSvc))
			r.Put("/api/orders/{id}/status", handler.UpdateStatusHandler(orderSvc, emailClient, hub))
			r.Put("/api/orders/{id}/progress", handler.UpdateProgressHandler(orderSvc))
			r.Put("/api/orders/{id}/measurements", handler.UpdateMeasurementsHandler(orderSvc))
			r.Get("/api/calendar", handler.CalendarHandler(orderSvc))
			r.Get("/api/customers", handler.ListCustomersHandler(customerSvc))
		})
	})

	srv := &http.Server{
		Addr:         cfg.RunAddress,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	slog.Info("starting server", "addr", cfg.RunAddress)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-quit
	slog.Info("shutting down...")

	ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()

	if err := srv.Shutdown(ctxShut); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	cancel() // stop sessions

	slog.Info("server stopped")
}
