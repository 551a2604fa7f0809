package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"acronym-restful/auth"
	"acronym-restful/config"
	"acronym-restful/controllers"
	"acronym-restful/database"
	grpcserver "acronym-restful/grpc_server"
	"acronym-restful/registry"
	"acronym-restful/repositories"
	"acronym-restful/services"
	"acronym-restful/sessions"

	restful "github.com/emicklei/go-restful/v3"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/gorm"
)

const sweepInterval = 10 * time.Minute

// sessionStore is what main needs from either session backend.
type sessionStore interface {
	sessions.Store
	Sweep(ctx context.Context) (int64, error)
}

func newLogger(level string) *zap.Logger {
	var logger *zap.Logger
	var err error
	switch level {
	case "debug":
		logger, err = zap.NewDevelopment()
	default:
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(fmt.Errorf("failed to build logger: %w", err))
	}
	return logger
}

func newSessionStore(cfg config.SessionConfig, db *gorm.DB) sessionStore {
	clock := clockwork.NewRealClock()
	if cfg.Backend == "database" {
		return sessions.NewDatabaseStore(db, cfg.Timeout, clock)
	}
	return sessions.NewMemoryStore(cfg.Timeout, clock)
}

// sweepSessions drops expired sessions until ctx is done.
func sweepSessions(ctx context.Context, store sessionStore, logger *zap.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Sweep(ctx)
			if err != nil {
				logger.Warn("Session sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Debug("Swept expired sessions", zap.Int64("count", n))
			}
		}
	}
}

func main() {
	config.InitConfig()
	cfg := config.AppConfig

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync() // flush buffered entries on exit

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database, logger, cfg.LogLevel == "debug")
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	if err := database.SeedAdmin(ctx, db, cfg.Admin, logger); err != nil {
		logger.Fatal("Failed to seed admin user", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("Failed to access database handle", zap.Error(err))
	}
	defer sqlDB.Close()

	repos := repositories.New(db)

	if cfg.Session.Secret == config.DefaultSessionSecret {
		logger.Warn("Using the default session secret; set ACRONYMS_SESSION_SECRET in production")
	}
	store := newSessionStore(cfg.Session, db)
	go sweepSessions(ctx, store, logger)
	codec := sessions.NewCookieCodec(cfg.Session.CookieName, []byte(cfg.Session.Secret), cfg.Session.SecureCookie, cfg.Session.Timeout)

	sessionSource := auth.NewSessionSource(store, codec, repos.Users)
	apiAuthn := auth.NewAuthenticator(cfg.Session.CookieName, auth.NewBearerSource(repos.Tokens, repos.Users), sessionSource)
	webAuthn := auth.NewAuthenticator(cfg.Session.CookieName, sessionSource)

	userService := services.NewUserService(repos, auth.NewPasswordVerifier(repos.Users), auth.NewTokenIssuer(repos.Tokens))
	acronymService := services.NewAcronymService(repos, logger)
	categoryService := services.NewCategoryService(repos)

	apiFilters := auth.NewFilters(apiAuthn, logger)
	container := restful.NewContainer()
	container.Filter(controllers.Recover(logger))
	container.Filter(controllers.RequestLogger(logger))
	controllers.Register(container, "/apidocs.json",
		controllers.NewHealthController(sqlDB, logger),
		controllers.NewUserController(userService, apiFilters, logger),
		controllers.NewAcronymController(acronymService, apiFilters, logger),
		controllers.NewCategoryController(categoryService, apiFilters, logger),
		controllers.NewWebsiteController(controllers.WebsiteDeps{
			Users:        userService,
			Acronyms:     acronymService,
			Categories:   categoryService,
			Sessions:     store,
			Cookies:      codec,
			CSRF:         sessions.NewCSRFGuard(store),
			Filters:      auth.NewFilters(webAuthn, logger).WithSessionCookie(codec),
			CookieBanner: cfg.CookieBanner.Name,
		}, logger),
	)

	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           container,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	var serviceRegistry registry.ServiceRegistry
	var instanceID string
	if cfg.Consul.Address != "" {
		serviceRegistry, instanceID = register(ctx, cfg, logger)
	}

	grpcDeps := grpcserver.Deps{
		Users:         userService,
		Acronyms:      acronymService,
		Authenticator: apiAuthn,
		Registry:      serviceRegistry,
	}
	grpcServer, healthServer := grpcserver.NewServer(grpcDeps, logger)
	if cfg.GRPCPort > 0 {
		lis, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.GRPCPort))
		if err != nil {
			logger.Fatal("Failed to listen for gRPC", zap.Error(err))
		}
		go func() {
			logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server failed", zap.Error(err))
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if instanceID != "" {
		if err := serviceRegistry.Deregister(shutdownCtx, instanceID); err != nil {
			logger.Warn("Failed to deregister from Consul", zap.Error(err))
		}
	}
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", zap.Error(err))
	}
	grpcServer.GracefulStop()
}

// register announces the HTTP endpoint to Consul. A failure is logged and
// the server keeps running unregistered.
func register(ctx context.Context, cfg config.Config, logger *zap.Logger) (registry.ServiceRegistry, string) {
	r, err := registry.NewConsulRegistry(cfg.Consul.Address, logger)
	if err != nil {
		logger.Warn("Consul unavailable, skipping registration", zap.Error(err))
		return nil, ""
	}
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	id := fmt.Sprintf("%s-%s-%d", cfg.ServiceName, host, cfg.HTTPPort)
	instance := registry.Instance{
		ID:      id,
		Name:    cfg.ServiceName,
		Address: host,
		Port:    cfg.HTTPPort,
		Tags:    []string{"http", "api"},
		Meta:    map[string]string{"grpc_port": strconv.Itoa(cfg.GRPCPort)},
	}
	check := registry.CreateHTTPCheck(id, host, cfg.HTTPPort, "/health", "10s", "2s")
	if err := r.Register(ctx, instance, check); err != nil {
		logger.Warn("Consul registration failed", zap.Error(err))
		return r, ""
	}
	return r, id
}
