package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig is an optional YAML overlay applied on top of the
// environment. Only non-zero fields override; secrets stay in the
// environment.
type FileConfig struct {
	ListenAddr         string   `yaml:"listen_addr,omitempty"`
	CORSOrigins        []string `yaml:"cors_origins,omitempty"`
	RateLimit          string   `yaml:"rate_limit,omitempty"`
	RedisURL           string   `yaml:"redis_url,omitempty"`
	IOSReceiptEndpoint string   `yaml:"ios_receipt_endpoint,omitempty"`
	AndroidAPIBaseURL  string   `yaml:"android_api_base_url,omitempty"`
	AccountBaseURL     string   `yaml:"account_base_url,omitempty"`
	DownstreamBaseURL  string   `yaml:"downstream_base_url,omitempty"`
}

// LoadFile reads the overlay from the given path.
// If the file does not exist, an empty overlay is returned.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &cfg, nil
}

// Apply overlays the file values onto an environment-derived config.
func (f *FileConfig) Apply(cfg *ServerConfig) {
	if f.ListenAddr != "" {
		cfg.ListenAddr = f.ListenAddr
	}
	if len(f.CORSOrigins) > 0 {
		cfg.CORSOrigins = f.CORSOrigins
	}
	if f.RateLimit != "" {
		cfg.RateLimit = f.RateLimit
	}
	if f.RedisURL != "" {
		cfg.RedisURL = f.RedisURL
	}
	if f.IOSReceiptEndpoint != "" {
		cfg.IOSReceiptEndpoint = f.IOSReceiptEndpoint
	}
	if f.AndroidAPIBaseURL != "" {
		cfg.AndroidAPIBaseURL = f.AndroidAPIBaseURL
	}
	if f.AccountBaseURL != "" {
		cfg.AccountBaseURL = f.AccountBaseURL
	}
	if f.DownstreamBaseURL != "" {
		cfg.DownstreamBaseURL = f.DownstreamBaseURL
	}
}
