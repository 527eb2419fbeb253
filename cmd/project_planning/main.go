package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Matgc04/dssd-2025/client"
	"github.com/Matgc04/dssd-2025/project_planning/auth"
	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"github.com/Matgc04/dssd-2025/project_planning/services"
	"github.com/Matgc04/dssd-2025/utils/logging"
	"github.com/caarlos0/env/v10"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type planningEnv struct {
	DatabaseUri string `env:"DATABASE_URI" envDefault:"project_planning.db"`

	JwtSecret  string        `env:"JWT_SECRET,required"`
	JwtExpires time.Duration `env:"JWT_EXPIRES" envDefault:"1h"`

	AdminUsername string `env:"ADMIN_USERNAME" envDefault:"admin"`
	AdminEmail    string `env:"ADMIN_EMAIL" envDefault:"admin@example.com"`
	AdminPassword string `env:"ADMIN_PASSWORD,required"`

	BonitaUrl         string `env:"BONITA_URL" envDefault:"http://localhost:8080/bonita"`
	BonitaUsername    string `env:"BONITA_USERNAME" envDefault:"walter.bates"`
	BonitaPassword    string `env:"BONITA_PASSWORD" envDefault:"bpm"`
	BonitaProcessName string `env:"BONITA_PROCESS_NAME" envDefault:"ProjectPlanning"`

	RedisUrl string `env:"REDIS_URL"`

	LogDir   string `env:"LOG_DIR" envDefault:"logs"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

func loadEnvFile(envFile string) {
	slog.Info(fmt.Sprintf("loading env from file %v", envFile))
	err := godotenv.Load(envFile)
	if err != nil {
		log.Fatalf("error loading .env file '%v': %v", envFile, err)
	}
}

func loadEnv() (planningEnv, error) {
	var cfg planningEnv
	if err := env.Parse(&cfg); err != nil {
		return planningEnv{}, fmt.Errorf("error parsing env: %w", err)
	}
	return cfg, nil
}

func openLogFile(dir, name string) (*os.File, error) {
	return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
}

func newDenylist(redisUrl string) (auth.TokenDenylist, io.Closer, error) {
	if redisUrl == "" {
		slog.Warn("REDIS_URL not set, revoked tokens are kept in memory", "code", logging.SYSTEM)
		return auth.NewMemoryDenylist(), io.NopCloser(nil), nil
	}

	denylist, err := auth.NewRedisDenylist(redisUrl)
	if err != nil {
		return nil, nil, err
	}
	return denylist, denylist, nil
}

func runApp(cfg planningEnv, port int) error {
	if err := os.MkdirAll(cfg.LogDir, 0777); err != nil {
		return fmt.Errorf("error creating log dir: %w", err)
	}

	logFile, err := openLogFile(cfg.LogDir, "project_planning.log")
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer logFile.Close()

	auditLog, err := openLogFile(cfg.LogDir, "audit.log")
	if err != nil {
		return fmt.Errorf("error opening audit log file: %w", err)
	}
	defer auditLog.Close()

	logging.InitLogging(logFile, os.Stderr, "project_planning", logging.ParseLevel(cfg.LogLevel))
	slog.Info("logging initialized", "code", logging.SYSTEM, "log_file", logFile.Name())

	db, err := schema.OpenDb(cfg.DatabaseUri)
	if err != nil {
		return err
	}
	if err := schema.Migrate(db); err != nil {
		return err
	}

	denylist, closeDenylist, err := newDenylist(cfg.RedisUrl)
	if err != nil {
		return fmt.Errorf("error connecting to redis: %w", err)
	}
	defer closeDenylist.Close()

	identityProvider, err := auth.NewBasicIdentityProvider(
		db,
		denylist,
		auth.NewAuditLogger(auditLog),
		auth.BasicProviderArgs{
			Secret:        []byte(cfg.JwtSecret),
			TokenExpiry:   cfg.JwtExpires,
			AdminUsername: cfg.AdminUsername,
			AdminEmail:    cfg.AdminEmail,
			AdminPassword: cfg.AdminPassword,
		},
	)
	if err != nil {
		return fmt.Errorf("error creating identity provider: %w", err)
	}

	bonita := client.NewBonitaClient(cfg.BonitaUrl, cfg.BonitaUsername, cfg.BonitaPassword)

	planning := services.NewProjectPlanning(db, identityProvider, bonita, cfg.BonitaProcessName)

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Mount("/api", planning.Routes())
	r.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "code", logging.SYSTEM, "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("listen and serve returned error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server", "code", logging.SYSTEM)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")
	port := flag.Int("port", 5000, "Port to run server on")

	flag.Parse()

	if *envFile != "" {
		loadEnvFile(*envFile)
	}

	cfg, err := loadEnv()
	if err != nil {
		log.Fatal(err)
	}

	if err := runApp(cfg, *port); err != nil {
		log.Fatal(err)
	}
}
