package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/brightsteps/assistant/internal/api/handler"
	customMiddleware "github.com/brightsteps/assistant/internal/api/middleware"
	"github.com/brightsteps/assistant/internal/assistant"
	"github.com/brightsteps/assistant/internal/assistant/builtin"
	"github.com/brightsteps/assistant/internal/assistant/gemini"
	"github.com/brightsteps/assistant/internal/assistant/openai"
	"github.com/brightsteps/assistant/internal/config"
	"github.com/brightsteps/assistant/internal/repository/redis"
	"github.com/brightsteps/assistant/internal/repository/sqlite"
	"github.com/brightsteps/assistant/internal/security"
	"github.com/brightsteps/assistant/internal/service"
)

// NewRouter creates and configures the HTTP router. redisClient may be nil
// when Redis is disabled; rate limiting and history caching are skipped.
func NewRouter(cfg *config.Config, db *sqlite.DB, redisClient *redis.Client) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	jwtManager := security.NewJWTManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)

	// Repositories
	userRepo := sqlite.NewUserRepository(db)
	convRepo := sqlite.NewConversationRepository(db)
	msgRepo := sqlite.NewMessageRepository(db)

	// Reply providers. The builtin provider always registers so the
	// service can answer without any API key configured.
	fallback := builtin.NewProvider()
	providers := assistant.NewRouter(cfg.Assistant.Provider)
	providers.RegisterProvider(fallback)

	if cfg.Assistant.Gemini.APIKey != "" {
		providers.RegisterProvider(gemini.NewProvider(cfg.Assistant.Gemini))
	}
	if cfg.Assistant.OpenAI.APIKey != "" {
		providers.RegisterProvider(openai.NewProvider(cfg.Assistant.OpenAI))
	}
	log.Info().Strs("providers", providers.ListProviders()).Str("default", cfg.Assistant.Provider).Msg("reply providers registered")

	var historyCache *redis.HistoryCache
	if redisClient != nil {
		historyCache = redis.NewHistoryCache(redisClient)
	}

	// Services
	authService := service.NewAuthService(userRepo, jwtManager)
	chatService := service.NewChatService(convRepo, msgRepo, providers, fallback, historyCache)

	// Handlers
	authHandler := handler.NewAuthHandler(authService)
	conversationHandler := handler.NewConversationHandler(chatService)
	messageHandler := handler.NewMessageHandler(chatService)

	authMiddleware := customMiddleware.NewAuthMiddleware(jwtManager)

	// Health
	r.Get("/health", handler.HealthCheck)
	r.Get("/ready", handler.ReadyCheck(db))

	// Auth routes
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Get("/me", authHandler.Me)
		})
	})

	// Conversation routes, the chat client contract
	r.Group(func(r chi.Router) {
		if redisClient != nil {
			rateLimiter := redis.NewRateLimiter(
				redisClient,
				cfg.Assistant.RateLimit.RequestsPerMinute,
				cfg.Assistant.RateLimit.Burst,
			)
			r.Use(customMiddleware.NewRateLimitMiddleware(rateLimiter).Limit)
		}

		r.Get("/conversations", conversationHandler.List)
		r.Get("/conversations/{conversationID}/messages", conversationHandler.Messages)
		r.Delete("/conversations/{conversationID}", conversationHandler.Delete)
		r.Post("/messages", messageHandler.Send)
	})

	return r
}
