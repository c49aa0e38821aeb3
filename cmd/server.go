/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/submission-workflow/internal/api"
	"github.com/mautops/submission-workflow/internal/config"
	"github.com/mautops/submission-workflow/internal/container"
	"github.com/mautops/submission-workflow/internal/logging"
	"github.com/mautops/submission-workflow/internal/metrics"
	"github.com/spf13/cobra"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the operations server",
	Long: `Start the operations server.
It serves /health, /metrics and the read-only /ops/stats and /ops/verify
endpoints, refreshes workflow gauges periodically and re-applies the log
level when the config file changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if host, _ := cmd.Flags().GetString("host"); cmd.Flags().Changed("host") {
			cfg.Server.Host = host
		}
		if port, _ := cmd.Flags().GetInt("port"); cmd.Flags().Changed("port") {
			cfg.Server.Port = port
		}
		if config.IsProduction(cfg) {
			gin.SetMode(gin.ReleaseMode)
		}

		ctr, err := container.NewContainer(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()

		var tracing *api.Tracing
		if cfg.Tracing.Enabled {
			tracing, err = api.InitTracing(logging.ServiceName, cfg.Tracing.JaegerEndpoint, cfg.Tracing.SampleRate)
			if err != nil {
				return fmt.Errorf("failed to initialize tracing: %w", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tracing.Shutdown(ctx)
			}()
		}

		// 配置文件变更时只重新应用日志级别
		if configPath, _ := cmd.Flags().GetString("config"); configPath != "" {
			watcher := config.NewConfigWatcher(cfg, configPath, logger)
			watcher.OnConfigChange(func(newCfg *config.Config) {
				logging.ApplyLevel(logger, newCfg.Log.Level)
				logger.WithField("level", newCfg.Log.Level).Info("log level reloaded")
			})
			if err := watcher.Start(); err != nil {
				logger.WithError(err).Warn("config watcher disabled")
			}
			defer watcher.Stop()
		}

		collector := metrics.NewCollector(ctr.DB(), ctr.StatisticsService(), cfg.Metrics.CollectInterval, logger)
		collector.Start()
		defer collector.Stop()

		checkers := map[string]api.HealthChecker{}
		if fga := ctr.OpenFGAClient(); fga != nil {
			checkers["openfga"] = fga
		}
		router := api.SetupRoutes(api.RouterOptions{
			DB:        ctr.DB(),
			Checkers:  checkers,
			Stats:     ctr.StatisticsService(),
			Workflow:  ctr.WorkflowService(),
			Logger:    logger,
			Tracing:   tracing,
			RateLimit: cfg.Server.RateLimit,
			Burst:     cfg.Server.Burst,
		})
		router.NoRoute(func(c *gin.Context) {
			api.Error(c, http.StatusNotFound, "route not found", "the requested route does not exist")
		})

		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.WithField("addr", addr).Info("operations server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case err := <-errCh:
			return fmt.Errorf("failed to start server: %w", err)
		}

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		logger.Info("server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().String("host", "0.0.0.0", "Server host")
	serverCmd.Flags().Int("port", 9090, "Server port")
}
