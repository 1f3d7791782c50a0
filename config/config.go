// Package config handles application configuration.
//
// Configuration is split into two categories:
//   - Program identity: defined in genesis (program id, mint, allocations)
//   - Node settings: runtime configuration, can vary per node
package config

import (
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Storage backends.
const (
	BackendBadger  = "badger"
	BackendLevelDB = "leveldb"
)

// =============================================================================
// Node Configuration (runtime, per-node settings)
// =============================================================================

// Config holds node-specific runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Storage
	DB DBConfig

	// RPC server
	RPC RPCConfig

	// Instruction runtime
	Engine EngineConfig

	// Genesis override
	Genesis GenesisConfig

	// Logging
	Log LogConfig
}

// DBConfig selects the storage backend.
type DBConfig struct {
	Backend string `conf:"db.backend"` // badger or leveldb
}

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Enabled     bool     `conf:"rpc.enabled"`
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed"`
	CORSOrigins []string `conf:"rpc.cors"`      // Allowed CORS origins ("*" = all).
	RateLimit   float64  `conf:"rpc.ratelimit"` // Requests per second per client IP (0 = unlimited).
	Burst       int      `conf:"rpc.burst"`
}

// EngineConfig holds instruction runtime settings.
type EngineConfig struct {
	MaxSkew uint64 `conf:"engine.maxskew"` // Seconds an envelope timestamp may differ from the oracle (0 = unchecked).
}

// GenesisConfig points at an optional genesis file.
type GenesisConfig struct {
	File string `conf:"genesis.file"` // Empty = built-in genesis for the network.
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `conf:"log.level"`
	File       string `conf:"log.file"`
	JSON       bool   `conf:"log.json"`
	MaxSizeMB  int    `conf:"log.maxsize"`
	MaxBackups int    `conf:"log.maxbackups"`
	MaxAgeDays int    `conf:"log.maxage"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.klingnet-staking
//	macOS:   ~/Library/Application Support/KlingnetStaking
//	Windows: %APPDATA%\KlingnetStaking
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".klingnet-staking"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "KlingnetStaking")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "KlingnetStaking")
		}
		return filepath.Join(home, "AppData", "Roaming", "KlingnetStaking")
	default:
		return filepath.Join(home, ".klingnet-staking")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// DBDir returns the program state database directory.
func (c *Config) DBDir() string {
	return filepath.Join(c.NetworkDataDir(), "state")
}

// KeystoreDir returns the keystore directory.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.NetworkDataDir(), "keystore")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "stakingd.conf")
}

// RPCAddress returns the host:port the RPC server listens on.
func (c *Config) RPCAddress() string {
	return net.JoinHostPort(c.RPC.Addr, strconv.Itoa(c.RPC.Port))
}
