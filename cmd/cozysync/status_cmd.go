package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cozysync/engine/internal/localside"
	"github.com/cozysync/engine/internal/remoteside"
	"github.com/cozysync/engine/internal/syncengine"
)

func init() {
	rootCmd.AddCommand(newStatusCmd())
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print local and remote disk usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := loadDaemonConfig(cmd)
			if err != nil {
				return err
			}

			local := localside.New(cfg.DataDir, parseIDCase(cfg.IDCase), syncengine.PlatformFor())
			usedLocal, totalLocal, err := local.Side().DiskUsage(cmd.Context())
			if err != nil {
				return fmt.Errorf("probe local disk usage: %w", err)
			}
			fmt.Printf("local:  %s used of %s (%s)\n",
				humanize.Bytes(uint64(usedLocal)), humanize.Bytes(uint64(totalLocal)), cfg.DataDir)

			s3Client, err := newS3Client(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("configure s3 client: %w", err)
			}
			remote := remoteside.New(s3Client, cfg.S3Bucket, cfg.S3Prefix)
			usedRemote, totalRemote, err := remote.Side().DiskUsage(cmd.Context())
			if err != nil {
				return fmt.Errorf("probe remote disk usage: %w", err)
			}
			fmt.Printf("remote: %s used of %s (s3://%s/%s)\n",
				humanize.Bytes(uint64(usedRemote)), humanize.Bytes(uint64(totalRemote)), cfg.S3Bucket, cfg.S3Prefix)

			return nil
		},
	}
}
