// Package server initializes and runs the main application server. It opens
// the database, runs migrations, builds the object storage client and the
// service graph, and serves the HTTP API until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/anpetrov/filegate/internal/logging"
	"github.com/anpetrov/filegate/internal/server/auth"
	"github.com/anpetrov/filegate/internal/server/config"
	"github.com/anpetrov/filegate/internal/server/httpapi"
	"github.com/anpetrov/filegate/internal/server/repositories/repomanager"
	"github.com/anpetrov/filegate/internal/server/services"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	http   *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	storage, err := services.NewS3Storage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	signer := auth.NewSigner([]byte(cfg.SecretKey))

	serverTokens := services.NewTokenService(rm.ServerTokens(db), signer, auth.ServerProjection, logger)
	adminTokens := services.NewTokenService(rm.UserTokens(db), signer, auth.AdminProjection, logger)
	userTokens := services.NewTokenService(rm.UserTokens(db), signer, auth.UserProjection, logger)

	serverSvc := services.NewServerService(db, rm, serverTokens, logger)
	userSvc := services.NewUserService(db, rm, adminTokens, userTokens, logger)
	fileSvc := services.NewFileService(db, rm, storage, logger)

	httpSrv := httpapi.NewServer(cfg.EndpointAddrHTTP, cfg.ShutdownTimeout, logger, signer,
		serverSvc, userSvc, fileSvc)

	return &App{config: cfg, logger: logger, db: db, http: httpSrv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.http.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}
}
