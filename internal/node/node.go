// Package node wires storage, the instruction engine and the RPC server
// into a runnable staking node that can be embedded in any binary.
package node

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Klingon-tech/klingnet-staking/config"
	"github.com/Klingon-tech/klingnet-staking/internal/engine"
	klog "github.com/Klingon-tech/klingnet-staking/internal/log"
	"github.com/Klingon-tech/klingnet-staking/internal/rpc"
	"github.com/Klingon-tech/klingnet-staking/internal/storage"
	"github.com/rs/zerolog"
)

// ErrGenesisMismatch is returned when the data directory was initialized
// from a different genesis.
var ErrGenesisMismatch = errors.New("genesis does not match data directory")

// prefixNode namespaces node metadata in the shared database.
var (
	prefixNode     = []byte("n/")
	keyGenesisHash = []byte("genesis")
)

// Node is a fully-initialized staking node.
type Node struct {
	cfg     *config.Config
	genesis *config.Genesis
	logger  zerolog.Logger

	db     storage.DB
	engine *engine.Engine

	rpcServer *rpc.Server

	stopOnce sync.Once
}

// Option adjusts how New builds a node.
type Option func(*options)

type options struct {
	clock   engine.Clock
	initLog bool
}

// WithClock replaces the system clock as the engine's time source.
func WithClock(c engine.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithoutLogInit leaves the global logger as the caller configured it.
func WithoutLogInit() Option {
	return func(o *options) { o.initLog = false }
}

// New creates and initializes a node: logger, genesis, storage, engine
// and RPC server. It does not start serving; call Start for that.
func New(cfg *config.Config, opts ...Option) (*Node, error) {
	o := options{clock: engine.SystemClock{}, initLog: true}
	for _, opt := range opts {
		opt(&o)
	}

	// ── 1. Init logger ──────────────────────────────────────────────
	if o.initLog {
		if err := initLogger(cfg); err != nil {
			return nil, err
		}
	}
	logger := klog.Node

	// ── 2. Genesis ──────────────────────────────────────────────────
	genesis, err := loadGenesis(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("network", string(cfg.Network)).
		Str("program", genesis.ProgramID.String()).
		Str("mint", genesis.Mint.String()).
		Int("allocations", len(genesis.Alloc)).
		Msg("Starting staking node")

	// ── 3. Open storage ─────────────────────────────────────────────
	db, err := openDB(cfg.DB.Backend, cfg.DBDir())
	if err != nil {
		return nil, err
	}
	logger.Info().Str("backend", cfg.DB.Backend).Str("path", cfg.DBDir()).Msg("Database opened")

	// ── 4. Engine ───────────────────────────────────────────────────
	eng, err := engine.New(db, engine.Config{
		Program: genesis.ProgramID,
		Clock:   o.clock,
		MaxSkew: cfg.Engine.MaxSkew,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create engine: %w", err)
	}

	if err := applyGenesis(db, eng, genesis, logger); err != nil {
		db.Close()
		return nil, err
	}

	// ── 5. RPC server ───────────────────────────────────────────────
	var rpcServer *rpc.Server
	if cfg.RPC.Enabled {
		rpcServer = rpc.New(cfg.RPCAddress(), eng, rpc.NodeInfo{
			Network: string(cfg.Network),
			Version: config.Version,
			Mint:    genesis.Mint,
		}, cfg.RPC)
	} else {
		logger.Warn().Msg("RPC disabled by config")
	}

	return &Node{
		cfg:       cfg,
		genesis:   genesis,
		logger:    logger,
		db:        db,
		engine:    eng,
		rpcServer: rpcServer,
	}, nil
}

// Start begins serving RPC.
func (n *Node) Start() error {
	if n.rpcServer != nil {
		if err := n.rpcServer.Start(); err != nil {
			return fmt.Errorf("start rpc: %w", err)
		}
	}

	n.logger.Info().
		Uint64("oracle_time", n.engine.Now()).
		Str("rpc", n.RPCAddr()).
		Msg("Node started successfully")
	return nil
}

// Stop shuts the node down. It is safe to call more than once.
func (n *Node) Stop() {
	n.stopOnce.Do(func() {
		if n.rpcServer != nil {
			if err := n.rpcServer.Stop(); err != nil {
				n.logger.Warn().Err(err).Msg("RPC shutdown")
			}
		}
		if err := n.db.Close(); err != nil {
			n.logger.Warn().Err(err).Msg("Database close")
		}
		n.logger.Info().Msg("Goodbye!")
	})
}

// Engine returns the node's instruction engine.
func (n *Node) Engine() *engine.Engine {
	return n.engine
}

// Genesis returns the genesis the node was started from.
func (n *Node) Genesis() *config.Genesis {
	return n.genesis
}

// RPCAddr returns the address the RPC server is listening on.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

func initLogger(cfg *config.Config) error {
	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(logsDir, "stakingd.log")
	}
	err := klog.InitWithRotation(cfg.Log.Level, cfg.Log.JSON, logFile, klog.FileOptions{
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   true,
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	return nil
}

// applyGenesis records the genesis hash on first start, refuses a data
// directory initialized from another genesis and credits allocations once.
func applyGenesis(db storage.DB, eng *engine.Engine, g *config.Genesis, logger zerolog.Logger) error {
	hash, err := g.Hash()
	if err != nil {
		return fmt.Errorf("hash genesis: %w", err)
	}

	meta := storage.NewPrefixDB(db, prefixNode)
	stored, err := meta.Get(keyGenesisHash)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return fmt.Errorf("read genesis hash: %w", err)
	case !bytes.Equal(stored, hash[:]):
		return fmt.Errorf("%w: have %x, want %s", ErrGenesisMismatch, stored, hash)
	}

	alloc, err := g.Allocations()
	if err != nil {
		return err
	}
	applied, err := eng.ApplyGenesis(engine.Genesis{
		Mint:      g.Mint,
		Timestamp: g.Timestamp,
		Alloc:     alloc,
	})
	if err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	if stored == nil {
		if err := meta.Put(keyGenesisHash, hash[:]); err != nil {
			return fmt.Errorf("store genesis hash: %w", err)
		}
	}
	if applied {
		logger.Info().
			Str("hash", hash.String()).
			Uint64("total_alloc", g.TotalAlloc()).
			Msg("Genesis applied")
	}
	return nil
}
