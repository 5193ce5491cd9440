package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wgmilleriii/go-dem/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "demtool",
	Short: "Elevation raster statistics, sampling and lookups",
	Long:  "Reads DEM GeoTIFF tiles, reports coverage statistics, extracts strided elevation samples for web maps and answers point elevation queries.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if demDir != "" {
			cfg.DEMDir = demDir
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

var demDir string

func init() {
	rootCmd.PersistentFlags().StringVar(&demDir, "dir", "", "directory containing DEM GeoTIFFs (default from config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
