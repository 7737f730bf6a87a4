package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent gauntlet configuration stored as
// config.toml in the .gauntlet/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Memory      MemoryConfig      `toml:"memory"`
	Target      TargetConfig      `toml:"target"`
	Scoring     ScoringConfig     `toml:"scoring"`
	API         APIConfig         `toml:"api"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Events      EventsConfig      `toml:"events"`
}

// MemoryConfig holds conversation memory settings shared by every command
// that records or reads prompt pieces.
type MemoryConfig struct {
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresURL string `toml:"postgres_url,omitempty"`
}

// TargetConfig holds settings for the chat target under test.
// Endpoint and Model may stay empty; the target providers fall back to
// their own environment variables at construction time.
type TargetConfig struct {
	Provider string `toml:"provider,omitempty"`
	Endpoint string `toml:"endpoint,omitempty"`
	Model    string `toml:"model,omitempty"`
}

// ScoringConfig holds settings for the judge model used by scorers.
// Empty fields fall back to the target section.
type ScoringConfig struct {
	Provider string `toml:"provider,omitempty"`
	Endpoint string `toml:"endpoint,omitempty"`
	Model    string `toml:"model,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// EventsConfig holds event stream publisher settings. Brokers is a
// comma-separated list of bootstrap addresses for the kafka provider.
type EventsConfig struct {
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"memory.provider": {
		get: func(c *Config) string { return c.Memory.Provider },
		set: func(c *Config, v string) error { c.Memory.Provider = v; return nil },
	},
	"memory.sqlite_path": {
		get: func(c *Config) string { return c.Memory.SQLitePath },
		set: func(c *Config, v string) error { c.Memory.SQLitePath = v; return nil },
	},
	"memory.postgres_url": {
		get: func(c *Config) string { return c.Memory.PostgresURL },
		set: func(c *Config, v string) error { c.Memory.PostgresURL = v; return nil },
	},
	"target.provider": {
		get: func(c *Config) string { return c.Target.Provider },
		set: func(c *Config, v string) error { c.Target.Provider = v; return nil },
	},
	"target.endpoint": {
		get: func(c *Config) string { return c.Target.Endpoint },
		set: func(c *Config, v string) error { c.Target.Endpoint = v; return nil },
	},
	"target.model": {
		get: func(c *Config) string { return c.Target.Model },
		set: func(c *Config, v string) error { c.Target.Model = v; return nil },
	},
	"scoring.provider": {
		get: func(c *Config) string { return c.Scoring.Provider },
		set: func(c *Config, v string) error { c.Scoring.Provider = v; return nil },
	},
	"scoring.endpoint": {
		get: func(c *Config) string { return c.Scoring.Endpoint },
		set: func(c *Config, v string) error { c.Scoring.Endpoint = v; return nil },
	},
	"scoring.model": {
		get: func(c *Config) string { return c.Scoring.Model },
		set: func(c *Config, v string) error { c.Scoring.Model = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"vector_store.provider": {
		get: func(c *Config) string { return c.VectorStore.Provider },
		set: func(c *Config, v string) error { c.VectorStore.Provider = v; return nil },
	},
	"vector_store.target": {
		get: func(c *Config) string { return c.VectorStore.Target },
		set: func(c *Config, v string) error { c.VectorStore.Target = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}
