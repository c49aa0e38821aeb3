/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/mautops/submission-workflow/internal/config"
	"github.com/mautops/submission-workflow/internal/container"
	"github.com/mautops/submission-workflow/internal/logging"
	"github.com/mautops/submission-workflow/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "submission-workflow",
	Short: "Collaborative submission workflow engine",
	Long: `submission-workflow moves repository submissions through configured
review steps. Submissions wait in a task pool until an eligible reviewer
claims them, and are archived or returned to the submitter once the last
step approves or any step rejects.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file path (default: search in current directory, ./config, or $HOME/.submission-workflow)")
}

// GetRootCmd 返回根命令(用于测试)
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// LoadConfig 加载配置
func LoadConfig(configPath string) (*config.Config, error) {
	return config.Load(configPath)
}

// loadConfig 按 --config 标志加载配置并创建日志记录器
func loadConfig(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.NewLoggerFromConfig(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

// withContainer 初始化容器后执行 fn,结束时释放资源
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, ctr *container.Container) error) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctr, err := container.NewContainer(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer ctr.Close()

	ctx := service.WithRequestID(cmd.Context(), uuid.New().String())
	return fn(ctx, ctr)
}
