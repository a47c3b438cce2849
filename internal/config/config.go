package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port    string `yaml:"port"`
		BaseURL string `yaml:"baseURL"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Bank struct {
		ID   string `yaml:"id"`
		Path string `yaml:"path"`
		TTL  string `yaml:"ttl"`
	} `yaml:"bank"`
	Match struct {
		TimePerQuestion  string `yaml:"timePerQuestion"`
		ExplanationDelay string `yaml:"explanationDelay"`
		TickInterval     string `yaml:"tickInterval"`
		QuestionCount    int    `yaml:"questionCount"`
	} `yaml:"match"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Client struct {
		StatePath string `yaml:"statePath"`
	} `yaml:"client"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadOptional is Load, but a missing file yields an empty config so
// terminal clients run without one.
func LoadOptional(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	return cfg, err
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// QuestionCount returns the configured number of questions per match, or fallback.
func (c Config) QuestionCount(fallback int) int {
	if c.Match.QuestionCount > 0 {
		return c.Match.QuestionCount
	}
	return fallback
}
