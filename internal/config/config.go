package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	DEMDir   string         `yaml:"dem_dir" mapstructure:"dem_dir"`
	Extract  ExtractConfig  `yaml:"extract" mapstructure:"extract"`
	Stats    StatsConfig    `yaml:"stats" mapstructure:"stats"`
	Reduce   ReduceConfig   `yaml:"reduce" mapstructure:"reduce"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Download DownloadConfig `yaml:"download" mapstructure:"download"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ExtractConfig configures sample extraction.
type ExtractConfig struct {
	Stride         int    `yaml:"stride" mapstructure:"stride"`
	Format         string `yaml:"format" mapstructure:"format"`
	Output         string `yaml:"output" mapstructure:"output"`
	PixelCenter    bool   `yaml:"pixel_center" mapstructure:"pixel_center"`
	NoDataOverride string `yaml:"nodata_override" mapstructure:"nodata_override"`
	Reproject      bool   `yaml:"reproject" mapstructure:"reproject"`
	ListStride     int    `yaml:"list_stride" mapstructure:"list_stride"`
	ListOutput     string `yaml:"list_output" mapstructure:"list_output"`
	DB             string `yaml:"db" mapstructure:"db"`
}

// StatsConfig configures raster statistics.
type StatsConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
}

// ReduceConfig configures collection thinning.
type ReduceConfig struct {
	Factor int    `yaml:"factor" mapstructure:"factor"`
	Input  string `yaml:"input" mapstructure:"input"`
	Output string `yaml:"output" mapstructure:"output"`
}

// CacheConfig configures the raster caches.
type CacheConfig struct {
	Rasters    int `yaml:"rasters" mapstructure:"rasters"`
	BlockBytes int `yaml:"block_bytes" mapstructure:"block_bytes"`
}

// ServerConfig configures the elevation API server.
type ServerConfig struct {
	Port        int    `yaml:"port" mapstructure:"port"`
	StaticDir   string `yaml:"static_dir" mapstructure:"static_dir"`
	Interpolate bool   `yaml:"interpolate" mapstructure:"interpolate"`
	MaxParallel int    `yaml:"max_parallel" mapstructure:"max_parallel"`
}

// DownloadConfig configures fetching DEM tiles.
type DownloadConfig struct {
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Dates       []string      `yaml:"dates" mapstructure:"dates"`
	Bounds      string        `yaml:"bounds" mapstructure:"bounds"`
	MaxParallel int           `yaml:"max_parallel" mapstructure:"max_parallel"`
	Rate        float64       `yaml:"rate" mapstructure:"rate"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("demtool")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("dem_dir", "dem_files")
	v.SetDefault("extract.stride", 10)
	v.SetDefault("extract.format", "keyed")
	v.SetDefault("extract.output", "elevation_cache.json")
	v.SetDefault("extract.pixel_center", false)
	v.SetDefault("extract.nodata_override", "")
	v.SetDefault("extract.reproject", false)
	v.SetDefault("extract.list_stride", 100)
	v.SetDefault("extract.list_output", "public/elevation_tif.json")
	v.SetDefault("extract.db", "elevation.db")
	v.SetDefault("stats.format", "text")
	v.SetDefault("reduce.factor", 4)
	v.SetDefault("reduce.input", "elevation_cache.json")
	v.SetDefault("reduce.output", "elevation_cache_reduced.json")
	v.SetDefault("cache.rasters", 32)
	v.SetDefault("cache.block_bytes", 128<<20)
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.static_dir", "public")
	v.SetDefault("server.interpolate", false)
	v.SetDefault("server.max_parallel", 8)
	v.SetDefault("download.base_url", "https://prd-tnm.s3.amazonaws.com/StagedProducts/Elevation/13/ArcGrid/")
	v.SetDefault("download.dates", []string{
		"20240416", "20240308", "20231208", "20220811", "20220721",
		"20211229", "20211207", "20210811", "20210702", "20210630",
		"20210624", "20210616", "20210607", "20210301", "20201228",
	})
	v.SetDefault("download.bounds", "31.33,-109.05,37,-103")
	v.SetDefault("download.max_parallel", 4)
	v.SetDefault("download.rate", 2.0)
	v.SetDefault("download.timeout", 10*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
