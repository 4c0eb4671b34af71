package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"staff-arabia/infrastructure"
	"staff-arabia/interfaces"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	gin.SetMode(gin.ReleaseMode)
	return run(fx.New(serveModule(cfg)))
}

func serveModule(cfg *infrastructure.Config) fx.Option {
	return fx.Options(
		coreModule(cfg),
		fx.Provide(newRouter),
		fx.Invoke(registerServer),
	)
}

type routerParams struct {
	fx.In

	Config  *infrastructure.Config
	Logger  *zap.Logger
	Metrics *infrastructure.Metrics
	Store   *infrastructure.DocumentStore
	Events  infrastructure.EventPublisher
	Cache   infrastructure.ListingCache
}

func newRouter(p routerParams) *gin.Engine {
	router := interfaces.NewRouter(p.Config, p.Logger, p.Metrics)
	interfaces.NewHTTPHandler(router, &interfaces.HTTPHandler{
		Store:  p.Store,
		Events: p.Events,
		Cache:  p.Cache,
		Config: p.Config,
		Logger: p.Logger,
	})
	return router
}

func registerServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *infrastructure.Config, router *gin.Engine, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Info("server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return srv.Shutdown(ctx)
		},
	})
}
