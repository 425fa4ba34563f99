package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cozysync/engine/internal/cozyconfig"
)

func init() {
	rootCmd.AddCommand(newInitCmd())
}

func newInitCmd() *cobra.Command {
	var dataDir, bucket, prefix, region string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a CozySync sync pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cmd.Flag("config").Value.String()

			cfg := &cozyconfig.Config{
				DataDir:  dataDir,
				S3Bucket: bucket,
				S3Prefix: prefix,
				S3Region: region,
				Path:     path,
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "CozySync initialized\n")
			fmt.Fprintf(cmd.OutOrStdout(), "Config:  %s\n", cfg.Path)
			fmt.Fprintf(cmd.OutOrStdout(), "DataDir: %s\n", cfg.DataDir)
			fmt.Fprintf(cmd.OutOrStdout(), "Bucket:  %s\n", cfg.S3Bucket)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dataDir, "data-dir", "d", cozyconfig.DefaultDataDir, "local data directory to sync")
	cmd.Flags().StringVarP(&bucket, "bucket", "b", "", "S3 bucket backing the remote (\"the cozy\")")
	cmd.Flags().StringVar(&prefix, "prefix", "", "S3 key prefix")
	cmd.Flags().StringVar(&region, "region", os.Getenv("AWS_REGION"), "S3 region")

	return cmd
}
