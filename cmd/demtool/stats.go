package main

import (
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	dem "github.com/wgmilleriii/go-dem"
	"github.com/wgmilleriii/go-dem/internal/batch"
)

var statsFormat string

var statsCmd = &cobra.Command{
	Use:   "stats [file...]",
	Short: "Report pixel coverage and elevation range of rasters",
	Long:  "Scans every pixel of each raster and reports total, valid and nodata pixel counts, percent valid and the elevation range. With no arguments every raster in the DEM directory is analyzed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		format := statsFormat
		if format == "" {
			format = cfg.Stats.Format
		}
		if format != "text" && format != "json" && format != "yaml" {
			return eris.Errorf("stats: unknown format %q", format)
		}

		out := cmd.OutOrStdout()
		var all []*dem.Stats
		for _, rd := range groupRasterArgs(args) {
			runner := newRunner(rd.dir)
			if _, err := runner.Analyze(ctx, rd.names, func(stats *dem.Stats) error {
				stats.Path = rd.path(stats.Path)
				if format == "text" {
					return stats.WriteText(out)
				}
				all = append(all, stats)
				return nil
			}); err != nil {
				return err
			}
		}

		switch format {
		case "json":
			return writeStatsJSON(out, all)
		case "yaml":
			return writeStatsYAML(out, all)
		default:
			return nil
		}
	},
}

func newRunner(dir string) *batch.Runner {
	if dir == "" {
		dir = "."
	}
	return batch.NewRunner(os.DirFS(dir),
		batch.WithGeoTIFFOptions(dem.WithBlockCacheSize(cfg.Cache.BlockBytes)),
		batch.WithReproject(cfg.Extract.Reproject),
	)
}

func writeStatsJSON(w io.Writer, stats []*dem.Stats) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return eris.Wrap(encoder.Encode(stats), "stats: encode json")
}

func writeStatsYAML(w io.Writer, stats []*dem.Stats) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	return eris.Wrap(encoder.Encode(stats), "stats: encode yaml")
}

func init() {
	statsCmd.Flags().StringVar(&statsFormat, "format", "", "output format: text, json or yaml (default from config)")
	rootCmd.AddCommand(statsCmd)
}
