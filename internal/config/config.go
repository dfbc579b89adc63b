package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Questions struct {
		TTL string `yaml:"ttl"`
	} `yaml:"questions"`
	Quiz struct {
		DefaultCount int `yaml:"default_count"`
	} `yaml:"quiz"`
	Test struct {
		ModuleSize  int    `yaml:"module_size"`
		ModuleCount int    `yaml:"module_count"`
		Duration    string `yaml:"duration"`
	} `yaml:"test"`
	Webhooks struct {
		ExplainURL string `yaml:"explain_url"`
		ReportURL  string `yaml:"report_url"`
		SubmitURL  string `yaml:"submit_url"`
		Timeout    string `yaml:"timeout"`
	} `yaml:"webhooks"`
	Auth struct {
		Secret string `yaml:"secret"`
	} `yaml:"auth"`
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
