package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	dem "github.com/wgmilleriii/go-dem"
	"github.com/wgmilleriii/go-dem/internal/store"
)

var lookupFlags struct {
	interpolate bool
	db          string
	radius      float64
}

var lookupCmd = &cobra.Command{
	Use:   "lookup latitude longitude",
	Short: "Print the elevation at a point",
	Long:  "Prints the elevation at a point from the rasters in the DEM directory, or from the latest extraction in a SQLite sample store when --db is given. Prints null when there is no data at the point.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		point, err := parsePoint(args[0], args[1])
		if err != nil {
			return err
		}

		var elevation float64
		if lookupFlags.db != "" {
			elevation, err = lookupStore(cmd.Context(), lookupFlags.db, point, lookupFlags.radius)
		} else {
			elevation, err = lookupCatalog(cmd.Context(), point, lookupFlags.interpolate || cfg.Server.Interpolate)
		}
		if err != nil {
			return err
		}

		if math.IsNaN(elevation) {
			fmt.Fprintln(cmd.OutOrStdout(), "null")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), elevation)
		}
		return nil
	},
}

func parsePoint(latStr, lonStr string) (dem.Point, error) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return dem.Point{}, eris.Wrapf(err, "invalid latitude %q", latStr)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return dem.Point{}, eris.Wrapf(err, "invalid longitude %q", lonStr)
	}
	return dem.Point{Lat: lat, Lon: lon}, nil
}

func newCatalog(ctx context.Context, interpolate bool) (*dem.Catalog, error) {
	options := []dem.CatalogOption{
		dem.WithCatalogCacheSize(cfg.Cache.Rasters),
		dem.WithCatalogGeoTIFFOptions(dem.WithBlockCacheSize(cfg.Cache.BlockBytes)),
	}
	if interpolate {
		options = append(options, dem.WithInterpolation())
	}
	catalog, err := dem.NewCatalog(ctx, os.DirFS(cfg.DEMDir), options...)
	if err != nil {
		return nil, err
	}
	for name, err := range catalog.Skipped() {
		zap.L().Warn("skipping file", zap.String("file", name), zap.Error(err))
	}
	return catalog, nil
}

func lookupCatalog(ctx context.Context, point dem.Point, interpolate bool) (float64, error) {
	catalog, err := newCatalog(ctx, interpolate)
	if err != nil {
		return 0, err
	}
	defer catalog.Close()
	return catalog.Elevation(ctx, point)
}

func lookupStore(ctx context.Context, dsn string, point dem.Point, radius float64) (float64, error) {
	sqliteStore, err := store.NewSQLite(dsn)
	if err != nil {
		return 0, err
	}
	defer sqliteStore.Close()

	run, err := sqliteStore.LatestRun(ctx)
	if err != nil {
		return 0, err
	}
	if run == nil {
		return 0, eris.Errorf("lookup: no runs in %s", dsn)
	}
	sample, err := sqliteStore.Nearest(ctx, run.ID, point.Lat, point.Lon, radius)
	switch {
	case err != nil:
		return 0, err
	case sample == nil:
		return math.NaN(), nil
	default:
		return sample.Elevation, nil
	}
}

func init() {
	flags := lookupCmd.Flags()
	flags.BoolVar(&lookupFlags.interpolate, "interpolate", false, "interpolate bilinearly between pixel centers")
	flags.StringVar(&lookupFlags.db, "db", "", "answer from the latest run in this SQLite sample store")
	flags.Float64Var(&lookupFlags.radius, "radius", 0.01, "search radius in degrees for --db")
	rootCmd.AddCommand(lookupCmd)
}
