// Command mock-identity is a local stand-in for the identity service that
// banking-service resolves bearer tokens against.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	env "github.com/caarlos0/env/v11"
	"golang.org/x/crypto/bcrypt"

	"github.com/josh-kwaku/banking-service/internal/logging"
)

type config struct {
	Port          int           `env:"PORT" envDefault:"8081"`
	JWTSecret     string        `env:"JWT_SECRET" envDefault:"dev-only-secret"`
	TokenExpiry   time.Duration `env:"TOKEN_EXPIRY" envDefault:"24h"`
	AdminUsername string        `env:"ADMIN_USERNAME" envDefault:"admin"`
	AdminPassword string        `env:"ADMIN_PASSWORD" envDefault:"admin123"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv        string        `env:"APP_ENV" envDefault:"development"`
}

func main() {
	cfg, err := env.ParseAs[config]()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("mock-identity", cfg.LogLevel, cfg.AppEnv)

	users := newUserStore(bcrypt.DefaultCost)
	if _, err := users.create(cfg.AdminUsername, cfg.AdminPassword, true); err != nil {
		logger.Error("failed to seed admin user", "error", err)
		os.Exit(1)
	}

	s := &server{users: users, secret: cfg.JWTSecret, tokenExpiry: cfg.TokenExpiry}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.routes(logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("mock identity service started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
