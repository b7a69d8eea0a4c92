package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"
)

type Config struct {
	Listen   string `yaml:"listen"`
	LogLevel int    `yaml:"log_level"`

	OutputDir           string            `yaml:"output_dir"`
	CacheDir            string            `yaml:"cache_dir"`
	CacheMaxAgeMinutes  int               `yaml:"cache_max_age_minutes"`
	DownloadTimeoutSecs int               `yaml:"download_timeout_seconds"`
	Sources             map[string]string `yaml:"sources"`
	CuratedLists        []CuratedList     `yaml:"curated_lists"`
}

func defaultConfig() *Config {
	return &Config{
		Listen:             ":12950",
		LogLevel:           int(logrus.InfoLevel),
		OutputDir:          ".",
		CacheDir:           "IANASources",
		CacheMaxAgeMinutes: 12 * 60,
		Sources: map[string]string{
			"apnic":   "https://ftp.apnic.net/stats/apnic/delegated-apnic-latest",
			"arin":    "https://ftp.arin.net/pub/stats/arin/delegated-arin-extended-latest",
			"ripencc": "https://ftp.ripe.net/ripe/stats/delegated-ripencc-latest",
			"afrinic": "https://ftp.afrinic.net/pub/stats/afrinic/delegated-afrinic-latest",
			"lacnic":  "https://ftp.lacnic.net/pub/stats/lacnic/delegated-lacnic-latest",
		},
		CuratedLists: []CuratedList{
			{
				Name:  "StateSponsorsOfTerrorism",
				Codes: []string{"IR", "CU", "KP", "SY"},
			},
			{
				Name: "OFACSanctioned",
				Codes: []string{
					"IR", "CU", "KP", "SY", "RU", "BY", "YE", "IQ", "MM",
					"CF", "CD", "ET", "HK", "LB", "LY", "SD", "VE", "ZW",
				},
			},
		},
	}
}

// ParseConfig reads the YAML config, falling back to defaults when the
// file does not exist. Absent fields keep their default values.
func ParseConfig(path string) (*Config, error) {
	conf := defaultConfig()

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.Debugf("config %s not found, using defaults", path)
			return conf, nil
		}
		return nil, errors.Wrapf(err, "unable to read config %s", path)
	}

	override := &Config{}
	if err := yaml.Unmarshal(content, override); err != nil {
		return nil, errors.Wrapf(err, "unable to parse config %s", path)
	}

	if override.Listen != "" {
		conf.Listen = override.Listen
	}
	if override.LogLevel != 0 {
		conf.LogLevel = override.LogLevel
	}
	if override.OutputDir != "" {
		conf.OutputDir = override.OutputDir
	}
	if override.CacheDir != "" {
		conf.CacheDir = override.CacheDir
	}
	if override.CacheMaxAgeMinutes != 0 {
		conf.CacheMaxAgeMinutes = override.CacheMaxAgeMinutes
	}
	if override.DownloadTimeoutSecs != 0 {
		conf.DownloadTimeoutSecs = override.DownloadTimeoutSecs
	}
	for reg, url := range override.Sources {
		conf.Sources[reg] = url
	}
	if len(override.CuratedLists) > 0 {
		conf.CuratedLists = override.CuratedLists
	}

	return conf, nil
}

func (c *Config) cacheMaxAge() time.Duration {
	return time.Duration(c.CacheMaxAgeMinutes) * time.Minute
}

func (c *Config) downloadTimeout() time.Duration {
	if c.DownloadTimeoutSecs > 0 {
		return time.Duration(c.DownloadTimeoutSecs) * time.Second
	}
	return defaultDownloadTimeout
}
