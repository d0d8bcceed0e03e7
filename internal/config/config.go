package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Dataset   DatasetConfig   `yaml:"dataset" mapstructure:"dataset"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Normalize NormalizeConfig `yaml:"normalize" mapstructure:"normalize"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DatasetConfig locates the road segment dataset.
type DatasetConfig struct {
	Source     string  `yaml:"source" mapstructure:"source"`
	Projection string  `yaml:"projection" mapstructure:"projection"`
	CRS        string  `yaml:"crs" mapstructure:"crs"`
	CellSizeM  float64 `yaml:"cell_size_m" mapstructure:"cell_size_m"`
}

// ScoringConfig tunes the visibility model and the impression aggregator.
type ScoringConfig struct {
	NearM            float64            `yaml:"near_m" mapstructure:"near_m"`
	FarM             float64            `yaml:"far_m" mapstructure:"far_m"`
	RadiusM          float64            `yaml:"radius_m" mapstructure:"radius_m"`
	MinSample        float64            `yaml:"min_sample" mapstructure:"min_sample"`
	OptimalSample    float64            `yaml:"optimal_sample" mapstructure:"optimal_sample"`
	ConfidenceFloor  float64            `yaml:"confidence_floor" mapstructure:"confidence_floor"`
	DiversityCoef    float64            `yaml:"diversity_coef" mapstructure:"diversity_coef"`
	RoadWeights      map[string]float64 `yaml:"road_weights" mapstructure:"road_weights"`
	DirectionWeights map[string]float64 `yaml:"direction_weights" mapstructure:"direction_weights"`
}

// NormalizeConfig sets the index range and outlier fence.
type NormalizeConfig struct {
	Min   float64 `yaml:"min" mapstructure:"min"`
	Max   float64 `yaml:"max" mapstructure:"max"`
	Fence float64 `yaml:"fence" mapstructure:"fence"`
}

// CacheConfig sizes the impression cache.
type CacheConfig struct {
	Capacity int `yaml:"capacity" mapstructure:"capacity"`
}

// BatchConfig configures batch scoring.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	RateLimit   float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst       int      `yaml:"burst" mapstructure:"burst"`
	MaxBatch    int      `yaml:"max_batch" mapstructure:"max_batch"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// StoreConfig locates the SQLite run store.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ExportConfig configures copying batch scores into PostgreSQL.
type ExportConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from ./config.yaml (optional) and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from the given file, or from ./config.yaml
// when path is empty, then applies environment overrides.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("IMPRESSIONS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional unless named explicitly)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dataset.projection", "local")
	v.SetDefault("dataset.crs", "EPSG:4326")
	v.SetDefault("dataset.cell_size_m", 150.0)
	v.SetDefault("scoring.near_m", 50.0)
	v.SetDefault("scoring.far_m", 150.0)
	v.SetDefault("scoring.radius_m", 150.0)
	v.SetDefault("scoring.min_sample", 100.0)
	v.SetDefault("scoring.optimal_sample", 1000.0)
	v.SetDefault("scoring.confidence_floor", 0.6)
	v.SetDefault("scoring.diversity_coef", 0.1)
	v.SetDefault("normalize.min", 20.0)
	v.SetDefault("normalize.max", 80.0)
	v.SetDefault("normalize.fence", 1.5)
	v.SetDefault("cache.capacity", 1000)
	v.SetDefault("batch.concurrency", 8)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 50.0)
	v.SetDefault("server.burst", 100)
	v.SetDefault("server.max_batch", 10000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("store.path", "impressions.db")
	v.SetDefault("export.table", "storefront_scores")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
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
