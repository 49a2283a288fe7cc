package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/smartpro-app/smartpro-backend/internal/booking"
	"github.com/smartpro-app/smartpro-backend/internal/handlers"
	"github.com/smartpro-app/smartpro-backend/internal/model"
	"github.com/smartpro-app/smartpro-backend/internal/outbox"
	"github.com/smartpro-app/smartpro-backend/internal/storage"
	"github.com/smartpro-app/smartpro-backend/libs/config"
	"github.com/smartpro-app/smartpro-backend/libs/db"
	"github.com/smartpro-app/smartpro-backend/libs/httpx"
	"github.com/smartpro-app/smartpro-backend/libs/kafkax"
	otelx "github.com/smartpro-app/smartpro-backend/libs/otel"
	"github.com/smartpro-app/smartpro-backend/libs/runtime"
	"github.com/smartpro-app/smartpro-backend/migrations"
)

func main() {
	service := config.String("SERVICE_NAME", "smartpro")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if config.String("MIGRATE_ON_START", "true") == "true" {
		if err := migrations.Up(ctx, pool); err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
	}

	outboxRepo := outbox.NewRepository()
	store := storage.NewStore(pool, outboxRepo)
	manager := booking.NewManager(store, logger, booking.Config{
		Hours: booking.Hours{
			Open:  config.Minutes("BUSINESS_OPEN_MINUTES", 9*time.Hour),
			Close: config.Minutes("BUSINESS_CLOSE_MINUTES", 17*time.Hour),
		},
		Step:        config.Minutes("SLOT_STEP_MINUTES", 30*time.Minute),
		CallTimeout: 15 * time.Second,
	})

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   kafkaBrokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	authn := handlers.NewAuthenticator(jwtSecret)
	bookingHandler := handlers.NewBookingHandler(manager, store, logger)
	serviceHandler := handlers.NewServiceHandler(store, logger)
	profileHandler := handlers.NewProfileHandler(store, logger)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if kafkaBrokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)})
	}

	rateLimit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	var limit httpx.Middleware
	if redisAddr := config.String("REDIS_ADDR", ""); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		defer rdb.Close()
		limit = httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, service).Middleware(logger, true)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
	} else {
		limit = httpx.NewRateLimiter(rateLimit, time.Minute).Middleware()
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)

	mux.HandleFunc("/api/v1/services", serviceHandler.List)
	mux.HandleFunc("/api/v1/slots", bookingHandler.Slots)

	mux.HandleFunc("/api/v1/bookings", clientRoutes(authn, bookingHandler))
	mux.HandleFunc("/api/v1/bookings/cancel", authn.RequireRole(model.RoleClient, bookingHandler.Cancel))

	mux.HandleFunc("/api/v1/provider/bookings", authn.RequireRole(model.RoleProvider, bookingHandler.ProviderList))
	mux.HandleFunc("/api/v1/provider/bookings/confirm", authn.RequireRole(model.RoleProvider, bookingHandler.ProviderConfirm))
	mux.HandleFunc("/api/v1/provider/bookings/complete", authn.RequireRole(model.RoleProvider, bookingHandler.ProviderComplete))

	mux.HandleFunc("/api/v1/provider/services", providerServiceRoutes(authn, serviceHandler))
	mux.HandleFunc("/api/v1/provider/services/update", authn.RequireRole(model.RoleProvider, serviceHandler.Update))
	mux.HandleFunc("/api/v1/provider/services/deactivate", authn.RequireRole(model.RoleProvider, serviceHandler.Deactivate))

	mux.HandleFunc("/api/v1/me", authn.RequireAuth(profileHandler.Me))
	mux.HandleFunc("/api/v1/me/update", authn.RequireAuth(profileHandler.UpdateMe))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(corsFromEnv()),
		httpx.WithBodyLimit(1<<20),
		limit,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, service)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// /api/v1/bookings serves the client's list on GET and creation on POST,
// both gated on the client role.
func clientRoutes(authn *handlers.Authenticator, h *handlers.BookingHandler) http.HandlerFunc {
	list := authn.RequireRole(model.RoleClient, h.ListMine)
	create := authn.RequireRole(model.RoleClient, h.Create)
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			list(w, r)
			return
		}
		create(w, r)
	}
}

// /api/v1/provider/services lists the provider's services on GET and
// creates one on POST.
func providerServiceRoutes(authn *handlers.Authenticator, h *handlers.ServiceHandler) http.HandlerFunc {
	list := authn.RequireRole(model.RoleProvider, h.ProviderList)
	create := authn.RequireRole(model.RoleProvider, h.Create)
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			list(w, r)
			return
		}
		create(w, r)
	}
}

func corsFromEnv() httpx.CORSPolicy {
	origins := config.String("CORS_ALLOWED_ORIGINS", "")
	if strings.TrimSpace(origins) == "" {
		return httpx.CORSPolicy{}
	}
	return httpx.CORSPolicy{
		AllowedOrigins:   strings.Split(origins, ","),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           10 * time.Minute,
	}
}
