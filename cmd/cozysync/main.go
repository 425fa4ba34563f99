package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cozysync/engine/internal/cozyconfig"
	"github.com/cozysync/engine/internal/version"
)

var (
	home, _          = os.UserHomeDir()
	configFileName   = "config"
	rootConfigSearch = []string{
		filepath.Join(home, ".cozysync"),
		filepath.Join(home, ".config", "cozysync"),
	}
)

var rootCmd = &cobra.Command{
	Use:     "cozysync",
	Short:   "CozySync bidirectional file sync engine",
	Version: version.Detailed(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", cozyconfig.DefaultConfigPath, "CozySync config file")
}

func main() {
	if err := os.MkdirAll(filepath.Dir(cozyconfig.DefaultLogPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %v\n", err)
		os.Exit(1)
	}
	logFile, err := os.OpenFile(cozyconfig.DefaultLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	handler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	_ = godotenv.Load(filepath.Join(home, ".cozysync", ".env"))

	if cmd.Flag("config").Changed {
		path, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(path)
	} else {
		for _, dir := range rootConfigSearch {
			viper.AddConfigPath(dir)
		}
		viper.SetConfigName(configFileName)
		viper.SetConfigType("json")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return fmt.Errorf("read config %q: %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.SetEnvPrefix("COZYSYNC")
	viper.AutomaticEnv()
	return nil
}
