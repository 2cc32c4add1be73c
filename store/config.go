package store

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jacentio/kindstore/internal/shard"
)

// KeyStrategy selects how surrogate keys are allocated.
type KeyStrategy string

const (
	// KeySequence allocates increasing integer ids from a per-kind counter item.
	KeySequence KeyStrategy = "sequence"

	// KeyUUID allocates random UUIDs without a round trip.
	KeyUUID KeyStrategy = "uuid"
)

// Config holds configuration for the Store.
type Config struct {
	// Table is the DynamoDB table holding all kinds.
	// Default: "kindstore_entities"
	Table string

	// CreatedAtIndex is the local secondary index sorted by CreatedAt.
	// Default: "CreatedAtIndex"
	CreatedAtIndex string

	// UpdatedAtIndex is the local secondary index sorted by UpdatedAt.
	// Default: "UpdatedAtIndex"
	UpdatedAtIndex string

	// NumShards is the number of partitions each kind is spread over.
	// Higher values increase write throughput; full-kind queries then walk
	// every shard.
	// Default: 1
	// Max: 256
	NumShards int

	// KeyStrategy selects surrogate key allocation.
	// Default: KeySequence
	KeyStrategy KeyStrategy

	// KeyBlockSize is how many sequence ids are reserved per counter round trip.
	// Unused ids of a block are lost when the process exits.
	// Default: 1
	KeyBlockSize int

	// Region, Profile and Endpoint configure the AWS client built by Shared.
	// They are ignored by New. An Endpoint override targets DynamoDB Local.
	Region   string
	Profile  string
	Endpoint string
}

// DefaultConfig returns sensible defaults for a single-partition deployment.
func DefaultConfig() Config {
	return Config{
		Table:          "kindstore_entities",
		CreatedAtIndex: "CreatedAtIndex",
		UpdatedAtIndex: "UpdatedAtIndex",
		NumShards:      1,
		KeyStrategy:    KeySequence,
		KeyBlockSize:   1,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	def := DefaultConfig()
	if c.Table == "" {
		c.Table = def.Table
	}
	if c.CreatedAtIndex == "" {
		c.CreatedAtIndex = def.CreatedAtIndex
	}
	if c.UpdatedAtIndex == "" {
		c.UpdatedAtIndex = def.UpdatedAtIndex
	}
	if c.NumShards < 1 {
		c.NumShards = 1
	}
	if c.NumShards > shard.MaxShards {
		c.NumShards = shard.MaxShards
	}
	if c.KeyStrategy != KeyUUID {
		c.KeyStrategy = KeySequence
	}
	if c.KeyBlockSize < 1 {
		c.KeyBlockSize = 1
	}
}

// LoadConfig reads configuration from .env, .env.local and KINDSTORE_*
// environment variables (e.g. KINDSTORE_TABLE, KINDSTORE_NUM_SHARDS,
// KINDSTORE_KEY_STRATEGY). Unset values keep their defaults.
func LoadConfig() Config {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	v := viper.New()
	v.SetEnvPrefix("kindstore")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("table", def.Table)
	v.SetDefault("created-at-index", def.CreatedAtIndex)
	v.SetDefault("updated-at-index", def.UpdatedAtIndex)
	v.SetDefault("num-shards", def.NumShards)
	v.SetDefault("key-strategy", string(def.KeyStrategy))
	v.SetDefault("key-block-size", def.KeyBlockSize)
	v.SetDefault("region", "")
	v.SetDefault("profile", "")
	v.SetDefault("endpoint", "")

	cfg := Config{
		Table:          v.GetString("table"),
		CreatedAtIndex: v.GetString("created-at-index"),
		UpdatedAtIndex: v.GetString("updated-at-index"),
		NumShards:      v.GetInt("num-shards"),
		KeyStrategy:    KeyStrategy(strings.ToLower(v.GetString("key-strategy"))),
		KeyBlockSize:   v.GetInt("key-block-size"),
		Region:         v.GetString("region"),
		Profile:        v.GetString("profile"),
		Endpoint:       v.GetString("endpoint"),
	}
	cfg.validate()
	return cfg
}
