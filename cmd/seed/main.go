// Command seed creates one demo account per platform role so a fresh
// install can be tried without registering by hand.
package main

import (
	"context"
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/brightsteps/assistant/internal/config"
	"github.com/brightsteps/assistant/internal/domain"
	"github.com/brightsteps/assistant/internal/repository/sqlite"
	"github.com/brightsteps/assistant/internal/security"
	"github.com/brightsteps/assistant/internal/service"
)

var demoUsers = []domain.UserCreate{
	{Email: "parent@demo.local", Password: "demo-password", Role: domain.RoleParent, DisplayName: "Demo Parent"},
	{Email: "child@demo.local", Password: "demo-password", Role: domain.RoleChild, DisplayName: "Demo Child"},
	{Email: "doctor@demo.local", Password: "demo-password", Role: domain.RoleDoctor, DisplayName: "Demo Doctor"},
	{Email: "school@demo.local", Password: "demo-password", Role: domain.RoleSchool, DisplayName: "Demo School"},
}

func main() {
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sqlite.NewDB(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	jwtManager := security.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	authService := service.NewAuthService(sqlite.NewUserRepository(db), jwtManager)

	for _, input := range demoUsers {
		user, err := authService.Register(ctx, input)
		if errors.Is(err, service.ErrEmailTaken) {
			log.Info().Str("email", input.Email).Msg("account already exists, skipping")
			continue
		}
		if err != nil {
			log.Fatal().Err(err).Str("email", input.Email).Msg("Failed to create account")
		}
		log.Info().Str("email", user.Email).Str("role", string(user.Role)).Msg("created demo account")
	}
}
