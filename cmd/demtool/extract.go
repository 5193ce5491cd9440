package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	dem "github.com/wgmilleriii/go-dem"
	"github.com/wgmilleriii/go-dem/internal/batch"
	"github.com/wgmilleriii/go-dem/internal/store"
)

const formatSQLite = "sqlite"

var extractFlags struct {
	stride      int
	format      string
	output      string
	pixelCenter bool
	noData      string
	reproject   bool
}

var extractCmd = &cobra.Command{
	Use:   "extract [file...]",
	Short: "Sample rasters on a strided grid and write the valid samples",
	Long: `Samples every stride-th row and column of each raster, skips nodata
pixels and writes the samples of all files as a single collection.

Formats:
  keyed    JSON object from "lat,lon" to elevation (default)
  list     JSON array of {lat, lon, elevation}
  geojson  GeoJSON FeatureCollection of 3D points
  sqlite   a new run in the SQLite sample store`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		flags := cmd.Flags()
		format := cfg.Extract.Format
		if flags.Changed("format") {
			format = extractFlags.format
		}

		stride, output := cfg.Extract.Stride, cfg.Extract.Output
		switch format {
		case string(dem.FormatList):
			stride, output = cfg.Extract.ListStride, cfg.Extract.ListOutput
		case formatSQLite:
			output = cfg.Extract.DB
		}
		if flags.Changed("stride") {
			stride = extractFlags.stride
		}
		if flags.Changed("output") {
			output = extractFlags.output
		}

		var collectionFormat dem.Format
		if format != formatSQLite {
			var err error
			if collectionFormat, err = dem.ParseFormat(format); err != nil {
				return err
			}
		}

		samplerOptions := []dem.SamplerOption{dem.WithStride(stride)}
		if cfg.Extract.PixelCenter || extractFlags.pixelCenter {
			samplerOptions = append(samplerOptions, dem.WithPixelCenter())
		}
		noDataOverride := cfg.Extract.NoDataOverride
		if flags.Changed("nodata") {
			noDataOverride = extractFlags.noData
		}
		if noDataOverride != "" {
			noData, err := dem.ParseNoData(noDataOverride, dem.Float64)
			if err != nil {
				return err
			}
			samplerOptions = append(samplerOptions, dem.WithNoDataOverride(noData.Value()))
		}
		if flags.Changed("reproject") {
			cfg.Extract.Reproject = extractFlags.reproject
		}

		result := &batch.ExtractResult{
			Collection: dem.NewCollection(),
		}
		for _, rd := range groupRasterArgs(args) {
			dirResult, err := newRunner(rd.dir).Extract(ctx, rd.names, samplerOptions...)
			if err != nil {
				return err
			}
			for _, sample := range dirResult.Collection.Samples() {
				result.Collection.Add(sample)
			}
			for _, name := range dirResult.Processed {
				result.Processed = append(result.Processed, rd.path(name))
			}
			for _, skipped := range dirResult.Skipped {
				skipped.Name = rd.path(skipped.Name)
				result.Skipped = append(result.Skipped, skipped)
			}
		}
		if len(result.Processed) == 0 && len(result.Skipped) != 0 {
			return eris.Errorf("extract: all %d files skipped, not writing %s", len(result.Skipped), output)
		}

		if format == formatSQLite {
			if err := saveRun(cmd, output, stride, len(result.Processed), result.Collection); err != nil {
				return err
			}
		} else if err := writeCollection(output, result.Collection, collectionFormat); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Processed %d files (%d skipped)\n", len(result.Processed), len(result.Skipped))
		fmt.Fprintf(out, "Total points: %d\n", result.Collection.Len())
		fmt.Fprintf(out, "Saved to %s\n", output)
		return nil
	},
}

func writeCollection(output string, collection *dem.Collection, format dem.Format) error {
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "extract: create %s", dir)
		}
	}
	file, err := os.Create(output)
	if err != nil {
		return eris.Wrapf(err, "extract: create %s", output)
	}
	if err := collection.Write(file, format); err != nil {
		file.Close()
		return err
	}
	return eris.Wrapf(file.Close(), "extract: close %s", output)
}

func saveRun(cmd *cobra.Command, dsn string, stride, files int, collection *dem.Collection) error {
	ctx := cmd.Context()
	sqliteStore, err := store.NewSQLite(dsn)
	if err != nil {
		return err
	}
	defer sqliteStore.Close()
	if err := sqliteStore.Migrate(ctx); err != nil {
		return err
	}
	run, err := sqliteStore.SaveRun(ctx, stride, files, collection)
	if err != nil {
		return err
	}
	zap.L().Info("saved run", zap.String("run_id", run.ID), zap.Int("samples", run.Samples))
	return nil
}

func init() {
	flags := extractCmd.Flags()
	flags.IntVar(&extractFlags.stride, "stride", 0, "sample every stride-th row and column (default from config)")
	flags.StringVar(&extractFlags.format, "format", "", "output format: keyed, list, geojson or sqlite (default from config)")
	flags.StringVarP(&extractFlags.output, "output", "o", "", "output file (default from config)")
	flags.BoolVar(&extractFlags.pixelCenter, "pixel-center", false, "report pixel centers instead of pixel corners")
	flags.StringVar(&extractFlags.noData, "nodata", "", "treat this value as nodata instead of the raster's declared nodata")
	flags.BoolVar(&extractFlags.reproject, "reproject", false, "convert projected rasters' sample locations to WGS84")
	rootCmd.AddCommand(extractCmd)
}
