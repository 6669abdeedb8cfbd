package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vtfsd/vtfs/internal/config"
	"github.com/vtfsd/vtfs/internal/handler"
	"github.com/vtfsd/vtfs/internal/middleware"
	"github.com/vtfsd/vtfs/internal/service"
	"github.com/vtfsd/vtfs/internal/vfs"
	"github.com/vtfsd/vtfs/pkg/logging"
	"github.com/vtfsd/vtfs/pkg/logging/slogpretty"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = os.Getenv("VTFS_CONFIG_PATH")
	}
	if path == "" {
		path = defaultConfigPath
	}

	cfg := config.MustLoad(path)

	prettyLogger := setupPrettySlog()

	// Root context, cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.MakeContextWithLogger(ctx, prettyLogger)

	// Dependencies
	params := vfs.Params{
		TotalBlocks:  cfg.Filesystem.TotalBlocks,
		TotalInodes:  cfg.Filesystem.TotalInodes,
		MaxNameLen:   cfg.Filesystem.MaxNameLen,
		FilesystemID: cfg.Filesystem.FilesystemID,
	}
	owner := vfs.Credentials{
		UID: uint32(os.Getuid()),
		GID: uint32(os.Getgid()),
	}
	table := vfs.NewTable(params, owner)
	fsService := service.NewFileSystemService(table, params, owner)
	h := handler.NewHandler(fsService)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Internal assertion failures are fatal: log the panic and exit
	// instead of letting net/http recover it and keep serving.
	fatalOnPanic := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				prettyLogger.Error("Fatal panic", slog.Any("panic", rec))
				os.Exit(1)
			}
		}()
		mux.ServeHTTP(w, r)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      middleware.RequestIDMiddleware(middleware.LoggerMiddleware(prettyLogger, fatalOnPanic)),
		ReadTimeout:  cfg.App.DefaultTimeout,
		WriteTimeout: cfg.App.DefaultTimeout,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		prettyLogger.Info("Server started", slog.Int("port", cfg.App.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		fsService.Destroy(logging.MakeContextWithLogger(shutdownCtx, prettyLogger))
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		prettyLogger.Error("Server stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	prettyLogger.Info("Server stopped")
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
