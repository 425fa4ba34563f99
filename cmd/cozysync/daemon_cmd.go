package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cozysync/engine/internal/cozyconfig"
	"github.com/cozysync/engine/internal/localside"
	"github.com/cozysync/engine/internal/remoteside"
	"github.com/cozysync/engine/internal/syncengine"
	"github.com/cozysync/engine/internal/version"
)

func init() {
	rootCmd.AddCommand(newDaemonCmd())
}

func newDaemonCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the CozySync reconciliation daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			slog.Info("cozysync", "version", version.Version, "revision", version.Revision)

			cfg, err := loadDaemonConfig(cmd)
			if err != nil {
				return err
			}

			engineMode, err := parseMode(mode)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}

			store, err := syncengine.NewSQLiteStore(cfg.StorePath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			idCase := parseIDCase(cfg.IDCase)
			local := localside.New(cfg.DataDir, idCase, syncengine.PlatformFor())

			s3Client, err := newS3Client(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("configure s3 client: %w", err)
			}
			remote := remoteside.New(s3Client, cfg.S3Bucket, cfg.S3Prefix)

			local.SetRemote(remote)
			remote.SetLocal(local)

			localSideRec := local.Side()
			remoteSideRec := remote.Side()
			localSideRec.SetOpposite(remoteSideRec)
			remoteSideRec.SetOpposite(localSideRec)

			ignore := syncengine.NewIgnoreList()
			watcher := localside.NewWatcher(cfg.DataDir, store, idCase, syncengine.PlatformFor(), ignore.ShouldIgnore)

			poller := remoteside.NewPoller(s3Client, cfg.S3Bucket, cfg.S3Prefix, store, idCase)

			engine := syncengine.NewEngine(store, localSideRec, remoteSideRec, watcher, poller, ignore.Predicate())

			unsub := subscribeEvents(engine)
			defer unsub()

			defer slog.Info("cozysync: bye")
			if err := engine.Start(cmd.Context(), engineMode); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("cozysync: daemon stopped with error", "error", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "full", "sync mode: full, pull, or push")
	return cmd
}

func parseMode(mode string) (syncengine.Mode, error) {
	switch mode {
	case "full", "":
		return syncengine.ModeFull, nil
	case "pull":
		return syncengine.ModePull, nil
	case "push":
		return syncengine.ModePush, nil
	default:
		return 0, fmt.Errorf("unknown mode %q: want full, pull, or push", mode)
	}
}

func parseIDCase(s string) syncengine.IDCase {
	switch s {
	case "hfs-nfd":
		return syncengine.CaseInsensitiveNFD
	case "ntfs-upper":
		return syncengine.CaseInsensitiveUpper
	default:
		return syncengine.CaseSensitive
	}
}

func loadDaemonConfig(cmd *cobra.Command) (*cozyconfig.Config, error) {
	cfg := &cozyconfig.Config{
		Path:      viper.ConfigFileUsed(),
		DataDir:   viper.GetString("data_dir"),
		StorePath: viper.GetString("store_path"),
		S3Bucket:  viper.GetString("s3_bucket"),
		S3Prefix:  viper.GetString("s3_prefix"),
		S3Region:  viper.GetString("s3_region"),
		S3Endpoint: viper.GetString("s3_endpoint"),
		IDCase:    viper.GetString("id_case"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newS3Client(ctx context.Context, cfg *cozyconfig.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// subscribeEvents logs every engine event at a level matching its severity,
// mirroring the teacher's slog-everything idiom.
func subscribeEvents(e *syncengine.Engine) func() {
	ch, unsub := e.Events().Subscribe()
	go func() {
		for evt := range ch {
			data, _ := json.Marshal(evt)
			switch evt.Kind {
			case syncengine.EventOffline:
				slog.Warn("cozysync: offline", "event", string(data))
			default:
				slog.Debug("cozysync: event", "event", string(data))
			}
		}
	}()
	return unsub
}
