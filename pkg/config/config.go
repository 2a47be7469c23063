// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// envPrefix is the prefix of the environment variables overriding the config
// file, e.g. CPUMONITOR_SAMPLE_RATE_SECS.
const envPrefix = "cpumonitor"

const (
	defaultSampleRateSecs = 1
	defaultLogFormat      = "text"
)

type Config struct {
	// SampleRateSecs is the interval between emitted samples. The tick
	// snapshots go stale just under a second after a refresh, so sampling
	// faster than 1/s returns repeated values by design of the sampler.
	SampleRateSecs int `yaml:"sample_rate_secs" envconfig:"sample_rate_secs"`

	// PerCore adds one utilization ratio per logical processor to each sample.
	PerCore bool `yaml:"per_core" envconfig:"per_core"`

	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose" envconfig:"verbose"`

	// LogFormat is either "text" or "json".
	LogFormat string `yaml:"log_format" envconfig:"log_format"`
}

func NewConfig() *Config {
	return &Config{
		SampleRateSecs: defaultSampleRateSecs,
		LogFormat:      defaultLogFormat,
	}
}

// LoadConfig builds the configuration from defaults, then the YAML config
// file when one is given, then environment variable overrides.
func LoadConfig(configFile string) (*Config, error) {
	cfg := NewConfig()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("unable to read config file %s: %w", configFile, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unable to parse config file %s: %w", configFile, err)
		}
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("unable to read environment overrides: %w", err)
	}

	if cfg.SampleRateSecs <= 0 {
		cfg.SampleRateSecs = defaultSampleRateSecs
	}
	return cfg, nil
}
