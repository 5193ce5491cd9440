package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/wgmilleriii/go-dem/internal/download"
)

var downloadFlags struct {
	bounds      string
	urls        string
	baseURL     string
	maxParallel int
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Fetch missing USGS 1/3 arc-second DEM tiles into the DEM directory",
	Long: `Fetches every one degree tile that intersects a bounding box and has no
raster in the DEM directory yet, trying each configured publication date in
turn. With --urls, fetches the GeoTIFF URLs listed in a file (e.g. a CSV
export of a product search) instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		flags := cmd.Flags()
		downloadCfg := cfg.Download
		if flags.Changed("bounds") {
			downloadCfg.Bounds = downloadFlags.bounds
		}
		if flags.Changed("base-url") {
			downloadCfg.BaseURL = downloadFlags.baseURL
		}
		if flags.Changed("max-parallel") {
			downloadCfg.MaxParallel = downloadFlags.maxParallel
		}

		downloader := download.New(cfg.DEMDir,
			download.WithBaseURL(downloadCfg.BaseURL),
			download.WithDates(downloadCfg.Dates),
			download.WithHTTPClient(&http.Client{Timeout: downloadCfg.Timeout}),
			download.WithMaxParallel(downloadCfg.MaxParallel),
			download.WithRate(downloadCfg.Rate),
		)

		var result *download.Result
		if downloadFlags.urls != "" {
			file, err := os.Open(downloadFlags.urls)
			if err != nil {
				return eris.Wrapf(err, "download: open %s", downloadFlags.urls)
			}
			urls, err := download.ParseURLs(file)
			file.Close()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Found %d GeoTIFF URLs\n", len(urls))
			if result, err = downloader.URLs(ctx, urls); err != nil {
				return err
			}
		} else {
			bounds, err := download.ParseBounds(downloadCfg.Bounds)
			if err != nil {
				return err
			}
			if result, err = downloader.Tiles(ctx, bounds.Tiles()); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Downloaded: %d\n", len(result.Downloaded))
		fmt.Fprintf(out, "Already present: %d\n", len(result.Existing))
		fmt.Fprintf(out, "Failed: %d\n", len(result.Failed))
		for _, failure := range result.Failed {
			fmt.Fprintf(out, "  %s: %v\n", failure.Name, failure.Err)
		}
		return nil
	},
}

func init() {
	flags := downloadCmd.Flags()
	flags.StringVar(&downloadFlags.bounds, "bounds", "", "minLat,minLon,maxLat,maxLon of the tiles to fetch (default from config)")
	flags.StringVar(&downloadFlags.urls, "urls", "", "fetch the GeoTIFF URLs found in this file instead of tiles")
	flags.StringVar(&downloadFlags.baseURL, "base-url", "", "URL that tile file names are appended to (default from config)")
	flags.IntVar(&downloadFlags.maxParallel, "max-parallel", 0, "maximum concurrent fetches (default from config)")
	rootCmd.AddCommand(downloadCmd)
}
