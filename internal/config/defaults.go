package config

import "time"

// DefaultConfigPath is where the CLI looks for a config file before ./config.yaml.
const DefaultConfigPath = "/usr/local/etc/docverify/config.yaml"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/docverify/data/records.db"
	}
	if cfg.IDP.RequestTimeout == 0 {
		cfg.IDP.RequestTimeout = 20 * time.Minute
	}
	if cfg.IDP.FinanceTimeout == 0 {
		cfg.IDP.FinanceTimeout = 60 * time.Second
	}
	cfg.Stream.ApplyDefaults()
	cfg.Matching.ApplyDefaults()
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".json", ".jsonl"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
