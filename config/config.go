// Copyright 2025 cinematch Project Authors
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
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Config is the configuration for the cinematch server.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Model     ModelConfig     `mapstructure:"model"`
	Recommend RecommendConfig `mapstructure:"recommend"`
}

// ServerConfig is the configuration for the HTTP server.
type ServerConfig struct {
	HttpHost string `mapstructure:"http_host"`
	HttpPort int    `mapstructure:"http_port" validate:"gte=0,lte=65535"`
	// APIKey is the secret key for the RESTful API. Authorization is disabled
	// when the key is empty.
	APIKey string `mapstructure:"api_key"`
}

// ModelConfig locates the persisted serving artifacts.
type ModelConfig struct {
	// Dir is the directory holding the trained model and the movie table.
	Dir string `mapstructure:"dir" validate:"required"`
}

// RecommendConfig is the configuration for recommendations.
type RecommendConfig struct {
	// DefaultN is the default number of returned recommendations.
	DefaultN int `mapstructure:"default_n" validate:"gt=0"`
	// NumJobs is the number of concurrent scoring workers.
	NumJobs int `mapstructure:"num_jobs" validate:"gt=0"`
}

const (
	// ModelFile is the trained scoring model artifact inside the model directory.
	ModelFile = "model.bin"
	// MoviesFile is the movie metadata table inside the model directory.
	MoviesFile = "movies.csv"
)

// ModelPath returns the path of the trained model artifact.
func (config *Config) ModelPath() string {
	return filepath.Join(config.Model.Dir, ModelFile)
}

// MoviesPath returns the path of the movie metadata table.
func (config *Config) MoviesPath() string {
	return filepath.Join(config.Model.Dir, MoviesFile)
}

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HttpHost: "0.0.0.0",
			HttpPort: 8087,
		},
		Model: ModelConfig{
			Dir: "model",
		},
		Recommend: RecommendConfig{
			DefaultN: 10,
			NumJobs:  1,
		},
	}
}

func setDefault() {
	defaultConfig := GetDefaultConfig()
	// [server]
	viper.SetDefault("server.http_host", defaultConfig.Server.HttpHost)
	viper.SetDefault("server.http_port", defaultConfig.Server.HttpPort)
	viper.SetDefault("server.api_key", defaultConfig.Server.APIKey)
	// [model]
	viper.SetDefault("model.dir", defaultConfig.Model.Dir)
	// [recommend]
	viper.SetDefault("recommend.default_n", defaultConfig.Recommend.DefaultN)
	viper.SetDefault("recommend.num_jobs", defaultConfig.Recommend.NumJobs)
}

// LoadConfig loads configuration from a TOML file. Missing keys fall back to
// defaults and CINEMATCH_* environment variables override file values.
func LoadConfig(path string) (*Config, error) {
	setDefault()
	viper.SetConfigType("toml")
	viper.SetConfigFile(path)
	viper.SetEnvPrefix("cinematch")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		return nil, errors.Annotatef(err, "failed to read config file %s", path)
	}
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, errors.Trace(err)
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &config, nil
}

// Validate checks invariants of the configuration.
func (config *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.Trace(err)
	}
	return nil
}
