package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/doernaz/brandlift/internal/deploy"
)

var (
	deployDir  string
	deployRoot string
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Upload generated sites to the hosting sandbox over FTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("deploy"); err != nil {
			return err
		}
		root := deployRoot
		if root == "" {
			root = cfg.FTP.Root
		}

		up := deploy.NewFTPUploader(deploy.FTPOptions{
			Host:     cfg.FTP.Host,
			User:     cfg.FTP.User,
			Password: cfg.FTP.Password,
			Timeout:  time.Duration(cfg.FTP.TimeoutSecs) * time.Second,
		})
		n, err := up.Upload(ctx, deployDir, root)
		if err != nil {
			return err
		}
		zap.L().Info("deploy complete", zap.Int("files", n), zap.String("root", root))
		fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d file(s) to %s\n", n, root)
		return nil
	},
}

func init() {
	deployCmd.Flags().StringVar(&deployDir, "dir", "sites", "local directory to upload")
	deployCmd.Flags().StringVar(&deployRoot, "root", "", "remote root directory (default from config)")
	rootCmd.AddCommand(deployCmd)
}
