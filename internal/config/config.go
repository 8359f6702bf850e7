// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SMTPConfig holds credentials for the outbound mail account.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Sender   string `yaml:"sender"`
}

// Config holds all configuration for the service and the mail worker.
type Config struct {
	// Server
	Port int

	// Postgres
	DatabaseURL string

	// Redis
	RedisURL  string
	MailQueue string

	// Finished job results must outlive the caller's polling window.
	JobResultTTL time.Duration

	// Upstream statistics API
	CovidAPIBaseURL string
	FetchTimeout    time.Duration

	// Chart storage
	ChartDir string

	// SMTP
	SMTP SMTPConfig
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		URL    string `yaml:"url"`
		Queues struct {
			Mail string `yaml:"mail"`
		} `yaml:"queues"`
	} `yaml:"redis"`
	Covid struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"covid"`
	Chart struct {
		Dir string `yaml:"dir"`
	} `yaml:"chart"`
	Mail SMTPConfig `yaml:"mail"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables for non-YAML settings.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg := &Config{
		Port:            envOrDefaultInt("PORT", 2222),
		DatabaseURL:     firstNonEmpty(raw.Database.URL, os.Getenv("DATABASE_URL")),
		RedisURL:        firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		MailQueue:       firstNonEmpty(raw.Redis.Queues.Mail, envOrDefault("MAIL_QUEUE", "covid-mail")),
		JobResultTTL:    envOrDefaultDuration("JOB_RESULT_TTL", 500*time.Second),
		CovidAPIBaseURL: firstNonEmpty(raw.Covid.BaseURL, envOrDefault("COVID_API_BASE_URL", "https://corona-api.com")),
		FetchTimeout:    envOrDefaultDuration("FETCH_TIMEOUT", 15*time.Second),
		ChartDir:        firstNonEmpty(raw.Chart.Dir, envOrDefault("CHART_DIR", "images")),
		SMTP:            raw.Mail,
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database URL is required: set database.url in config.yaml or DATABASE_URL")
	}

	if cfg.SMTP.Username == "" {
		cfg.SMTP.Username = os.Getenv("EMAIL_USER")
	}
	if cfg.SMTP.Password == "" {
		cfg.SMTP.Password = os.Getenv("EMAIL_PASSWORD")
	}
	if cfg.SMTP.Host == "" {
		cfg.SMTP.Host = envOrDefault("SMTP_HOST", "smtp.gmail.com")
	}
	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = envOrDefaultInt("SMTP_PORT", 465)
	}
	if cfg.SMTP.Sender == "" {
		cfg.SMTP.Sender = cfg.SMTP.Username
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
