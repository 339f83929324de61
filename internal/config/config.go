package config

import (
	"time"

	"github.com/shelfmark/linkward/internal/obs"
	pginfra "github.com/shelfmark/linkward/internal/repository/postgres"
)

type Checker struct {
	Concurrency                int           `mapstructure:"concurrency"`
	DomainConcurrency          int           `mapstructure:"domain_concurrency"`
	RequestsPerDomainPerSecond float64       `mapstructure:"requests_per_domain_per_second"`
	Timeout                    time.Duration `mapstructure:"timeout"`
	RetryAttempts              int           `mapstructure:"retry_attempts"`
	RetryDelay                 time.Duration `mapstructure:"retry_delay"`
	RecheckWindow              time.Duration `mapstructure:"recheck_window"`
	BodySampleLimit            int64         `mapstructure:"body_sample_limit"`
}

// DomainInterval derives the minimum spacing between requests to one
// hostname from the configured per-domain rate.
func (c Checker) DomainInterval() time.Duration {
	if c.RequestsPerDomainPerSecond <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / c.RequestsPerDomainPerSecond)
}

type HTTP struct {
	UserAgent    string `mapstructure:"user_agent"`
	Accept       string `mapstructure:"accept"`
	MaxRedirects int    `mapstructure:"max_redirects"`
	VerifyTLS    bool   `mapstructure:"verify_tls"`
}

type Patterns struct {
	SkipHosts []string `mapstructure:"skip_hosts"`
	Soft404   []string `mapstructure:"soft404"`
	Login     []string `mapstructure:"login"`
}

type Server struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func (l Log) AsLoggerConfig(app, ver string) obs.LogConfig {
	return obs.LogConfig{Level: l.Level, Pretty: l.Pretty, App: app, Ver: ver}
}

type Config struct {
	DB       pginfra.Config `mapstructure:"db"`
	Checker  Checker        `mapstructure:"checker"`
	HTTP     HTTP           `mapstructure:"http"`
	Patterns Patterns       `mapstructure:"patterns"`
	Server   Server         `mapstructure:"server"`
	Log      Log            `mapstructure:"log"`
}
