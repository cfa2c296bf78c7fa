// Copyright 2026 olist-intelligence Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

const (
	PopularSourceProducts   = "products"
	PopularSourceCategories = "categories"
)

// DefaultStaticFallback holds the best selling Olist categories, served when
// nothing better is available.
var DefaultStaticFallback = []string{
	"cama_mesa_banho",
	"beleza_saude",
	"esporte_lazer",
	"moveis_decoracao",
	"informatica_acessorios",
}

// Config is the configuration for the recommender.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	Artifact  ArtifactConfig  `mapstructure:"artifact"`
	Server    ServerConfig    `mapstructure:"server"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// DatabaseConfig is the configuration for the data store and the cache store.
type DatabaseConfig struct {
	DataStore       string        `mapstructure:"data_store" validate:"required,data_store"`
	CacheStore      string        `mapstructure:"cache_store" validate:"omitempty,cache_store"`
	TablePrefix     string        `mapstructure:"table_prefix"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// RecommendConfig is the configuration for training and ranking.
type RecommendConfig struct {
	NFactors         int           `mapstructure:"n_factors" validate:"gt=0"`
	RandomState      int64         `mapstructure:"random_state"`
	Oversamples      int           `mapstructure:"oversamples" validate:"gte=0"`
	PowerIterations  int           `mapstructure:"power_iterations" validate:"gte=0"`
	BatchSize        int           `mapstructure:"batch_size" validate:"gt=0"`
	DefaultTopK      int           `mapstructure:"default_top_k" validate:"gt=0"`
	PopularSource    string        `mapstructure:"popular_source" validate:"oneof=products categories"`
	PopularWindow    time.Duration `mapstructure:"popular_window" validate:"gte=0"`
	PopularCacheSize int           `mapstructure:"popular_cache_size" validate:"gt=0"`
	PopularCacheTTL  time.Duration `mapstructure:"popular_cache_ttl" validate:"gte=0"`
	StaticFallback   []string      `mapstructure:"static_fallback"`
}

// GetStaticFallback returns the configured static list or the built-in default when it is empty.
func (config *RecommendConfig) GetStaticFallback() []string {
	if len(config.StaticFallback) == 0 {
		return DefaultStaticFallback
	}
	return config.StaticFallback
}

// ArtifactConfig is the configuration for the artifact store.
type ArtifactConfig struct {
	Store        string        `mapstructure:"store" validate:"required"`
	Name         string        `mapstructure:"name" validate:"required"`
	ReloadPeriod time.Duration `mapstructure:"reload_period" validate:"gte=0"`
	S3           S3Config      `mapstructure:"s3"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// ServerConfig is the configuration for the REST server.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port" validate:"gt=0,lte=65535"`
	APIKey         string        `mapstructure:"api_key"`
	PopularTimeout time.Duration `mapstructure:"popular_timeout" validate:"gt=0"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DataStore: "sqlite://olist.db",
		},
		Recommend: RecommendConfig{
			NFactors:         20,
			RandomState:      42,
			Oversamples:      10,
			PowerIterations:  5,
			BatchSize:        10000,
			DefaultTopK:      5,
			PopularSource:    PopularSourceProducts,
			PopularCacheSize: 100,
			PopularCacheTTL:  5 * time.Minute,
		},
		Artifact: ArtifactConfig{
			Store:        "artifacts",
			Name:         "recommender",
			ReloadPeriod: time.Minute,
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8087,
			PopularTimeout: 500 * time.Millisecond,
		},
		Tracing: TracingConfig{
			Exporter: "otlp",
			Sampler:  "always",
			Ratio:    1,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [database]
	v.SetDefault("database.data_store", defaultConfig.Database.DataStore)
	// [recommend]
	v.SetDefault("recommend.n_factors", defaultConfig.Recommend.NFactors)
	v.SetDefault("recommend.random_state", defaultConfig.Recommend.RandomState)
	v.SetDefault("recommend.oversamples", defaultConfig.Recommend.Oversamples)
	v.SetDefault("recommend.power_iterations", defaultConfig.Recommend.PowerIterations)
	v.SetDefault("recommend.batch_size", defaultConfig.Recommend.BatchSize)
	v.SetDefault("recommend.default_top_k", defaultConfig.Recommend.DefaultTopK)
	v.SetDefault("recommend.popular_source", defaultConfig.Recommend.PopularSource)
	v.SetDefault("recommend.popular_cache_size", defaultConfig.Recommend.PopularCacheSize)
	v.SetDefault("recommend.popular_cache_ttl", defaultConfig.Recommend.PopularCacheTTL)
	// [artifact]
	v.SetDefault("artifact.store", defaultConfig.Artifact.Store)
	v.SetDefault("artifact.name", defaultConfig.Artifact.Name)
	v.SetDefault("artifact.reload_period", defaultConfig.Artifact.ReloadPeriod)
	// [server]
	v.SetDefault("server.host", defaultConfig.Server.Host)
	v.SetDefault("server.port", defaultConfig.Server.Port)
	v.SetDefault("server.popular_timeout", defaultConfig.Server.PopularTimeout)
	// [tracing]
	v.SetDefault("tracing.exporter", defaultConfig.Tracing.Exporter)
	v.SetDefault("tracing.sampler", defaultConfig.Tracing.Sampler)
	v.SetDefault("tracing.ratio", defaultConfig.Tracing.Ratio)
}

type binding struct {
	key  string
	envs []string
}

var bindings = []binding{
	{"database.data_store", []string{"OLIST_DATA_STORE", "DATABASE_URL"}},
	{"database.cache_store", []string{"OLIST_CACHE_STORE"}},
	{"database.table_prefix", []string{"OLIST_TABLE_PREFIX"}},
	{"recommend.default_top_k", []string{"OLIST_DEFAULT_TOP_K"}},
	{"recommend.static_fallback", []string{"OLIST_STATIC_FALLBACK"}},
	{"artifact.store", []string{"OLIST_ARTIFACT_STORE"}},
	{"artifact.s3.endpoint", []string{"OLIST_S3_ENDPOINT"}},
	{"artifact.s3.access_key_id", []string{"OLIST_S3_ACCESS_KEY_ID"}},
	{"artifact.s3.secret_access_key", []string{"OLIST_S3_SECRET_ACCESS_KEY"}},
	{"server.host", []string{"OLIST_SERVER_HOST"}},
	{"server.port", []string{"OLIST_SERVER_PORT"}},
	{"server.api_key", []string{"OLIST_API_KEY"}},
}

// LoadConfig loads configuration from toml file. Environment variables override
// values in the file. An empty path loads defaults and environment variables only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	for _, b := range bindings {
		if err := v.BindEnv(append([]string{b.key}, b.envs...)...); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "failed to read config %s", path)
		}
	}
	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

var (
	dataStorePrefixes  = []string{"sqlite://", "mysql://", "postgres://", "postgresql://"}
	cacheStorePrefixes = []string{"redis://", "rediss://"}
)

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// Validate checks the configuration.
func (config *Config) Validate() error {
	validate := validator.New()
	if err := validate.RegisterValidation("data_store", func(fl validator.FieldLevel) bool {
		return hasAnyPrefix(fl.Field().String(), dataStorePrefixes)
	}); err != nil {
		return errors.Trace(err)
	}
	if err := validate.RegisterValidation("cache_store", func(fl validator.FieldLevel) bool {
		return hasAnyPrefix(fl.Field().String(), cacheStorePrefixes)
	}); err != nil {
		return errors.Trace(err)
	}
	if err := validate.Struct(config); err != nil {
		return errors.NewNotValid(err, "invalid config")
	}
	return nil
}
