package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/khidmaapp/availability/internal/consumer"
	"github.com/khidmaapp/availability/internal/handlers"
	"github.com/khidmaapp/availability/internal/inbox"
	"github.com/khidmaapp/availability/internal/marketplace"
	"github.com/khidmaapp/availability/internal/outbox"
	"github.com/khidmaapp/availability/internal/publish"
	"github.com/khidmaapp/availability/internal/storage"
	"github.com/khidmaapp/availability/libs/auth"
	"github.com/khidmaapp/availability/libs/config"
	"github.com/khidmaapp/availability/libs/db"
	"github.com/khidmaapp/availability/libs/httpx"
	"github.com/khidmaapp/availability/libs/kafkax"
	otelx "github.com/khidmaapp/availability/libs/otel"
	"github.com/khidmaapp/availability/libs/runtime"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "availability-service")
	port, err := config.Port("PORT", "8086")
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

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	repo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	runsRepo := publish.NewRepository(pool)
	publishSvc := publish.NewService(pool, repo, runsRepo, config.Int("PUBLISH_MAX_ATTEMPTS", 5))

	marketplaceURL, err := config.RequiredString("MARKETPLACE_BASE_URL")
	if err != nil {
		panic(err)
	}
	marketplaceClient := marketplace.NewHTTPClient(marketplaceURL, config.String("MARKETPLACE_API_TOKEN", ""))

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	publishWorker := publish.NewWorker(pool, runsRepo, outboxRepo, marketplaceClient, logger, publish.WorkerConfig{
		Interval:  config.Seconds("PUBLISH_POLL_SECONDS", 2*time.Second),
		BatchSize: config.Int("PUBLISH_BATCH_SIZE", 10),
		Backoff:   config.Seconds("PUBLISH_RETRY_BACKOFF_SECONDS", 30*time.Second),
	})
	go publishWorker.Run(ctx)

	if brokers := strings.TrimSpace(config.String("KAFKA_BROKERS", "")); brokers != "" {
		inboxRepo := inbox.NewRepository(pool)
		draftedConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "availability-service"),
			Topic:   config.String("KAFKA_CONSUME_TOPIC", consumer.TopicListingDrafted),
		}, consumer.ListingDraftedHandler(logger, repo))
		go draftedConsumer.Run(ctx)
	}

	handler := handlers.New(repo, publishSvc, runsRepo, logger)

	jwtSecret := config.String("JWT_SECRET", "dev-secret")
	var jwksClient *auth.JWKSClient
	if jwksURL := strings.TrimSpace(config.String("JWKS_URL", "")); jwksURL != "" {
		jwksClient = auth.NewJWKSClient(jwksURL, config.Seconds("JWKS_CACHE_SECONDS", 300*time.Second))
	}
	protect := func(fn http.HandlerFunc) http.Handler {
		return requireAuth(fn, jwtSecret, jwksClient)
	}

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		redisDB := 0
		if v, err := strconv.Atoi(config.String("REDIS_DB", "0")); err == nil && v >= 0 {
			redisDB = v
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.Handle("/api/v1/schedule", protect(handler.Schedule))
	mux.Handle("/api/v1/schedule/days/toggle", protect(handler.ToggleDay))
	mux.Handle("/api/v1/schedule/slots", protect(handler.AddSlot))
	mux.Handle("/api/v1/schedule/slots/update", protect(handler.UpdateSlot))
	mux.Handle("/api/v1/schedule/slots/remove", protect(handler.RemoveSlot))
	mux.Handle("/api/v1/exceptions", protect(handler.Exceptions))
	mux.Handle("/api/v1/exceptions/disabled-dates", protect(handler.DisabledDates))
	mux.Handle("/api/v1/publish", protect(handler.StartPublish))
	mux.Handle("/api/v1/publish/runs", protect(handler.PublishRuns))
	mux.Handle("/api/v1/public/availability", rateLimitMW(http.HandlerFunc(handler.PublicAvailability)))

	bodyLimit := int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))
	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   splitList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods:   splitList(config.String("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS")),
			AllowedHeaders:   splitList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id,X-Listing-Id")),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           config.Seconds("CORS_MAX_AGE_SECONDS", 10*time.Minute),
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(bodyLimit),
		httpx.WithTimeout(config.Seconds("REQUEST_TIMEOUT_SECONDS", 10*time.Second)),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "availability")
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

func requireAuth(next http.Handler, jwtSecret string, jwksClient *auth.JWKSClient) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		var claims *auth.Claims
		var err error

		if jwksClient != nil {
			header, err := auth.ParseHeader(token)
			if err != nil {
				http.Error(w, "invalid token header", http.StatusUnauthorized)
				return
			}
			if header.Alg == "RS256" && header.Kid != "" {
				pub, err := jwksClient.Get(header.Kid)
				if err != nil {
					http.Error(w, "invalid token key", http.StatusUnauthorized)
					return
				}
				claims, err = auth.VerifyRS256(token, pub)
				if err != nil {
					http.Error(w, "invalid token", http.StatusUnauthorized)
					return
				}
			} else {
				claims, err = auth.ParseAndVerifyHS256(token, jwtSecret)
				if err != nil {
					http.Error(w, "invalid token", http.StatusUnauthorized)
					return
				}
			}
		} else {
			claims, err = auth.ParseAndVerifyHS256(token, jwtSecret)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
		}

		r.Header.Del("X-User-Id")
		r.Header.Del("X-Provider-Id")
		r.Header.Del("X-Role")
		r.Header.Set("X-User-Id", claims.Sub)
		r.Header.Set("X-Provider-Id", claims.ProviderID)
		r.Header.Set("X-Role", claims.Role)
		next.ServeHTTP(w, r)
	})
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
