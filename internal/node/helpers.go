package node

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Klingon-tech/klingnet-staking/config"
	"github.com/Klingon-tech/klingnet-staking/internal/storage"
)

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// openDB opens the configured storage backend at path.
func openDB(backend, path string) (storage.DB, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	switch backend {
	case config.BackendBadger, "":
		db, err := storage.NewBadger(path)
		if err != nil {
			return nil, fmt.Errorf("open badger at %s: %w", path, err)
		}
		return db, nil
	case config.BackendLevelDB:
		db, err := storage.NewLevelDB(path)
		if err != nil {
			return nil, fmt.Errorf("open leveldb at %s: %w", path, err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown db backend %q", backend)
	}
}

// loadGenesis returns the genesis file named by the config, or the
// built-in genesis of the network.
func loadGenesis(cfg *config.Config) (*config.Genesis, error) {
	if cfg.Genesis.File == "" {
		g := config.GenesisFor(cfg.Network)
		if err := g.Validate(); err != nil {
			return nil, fmt.Errorf("built-in genesis: %w", err)
		}
		return g, nil
	}

	g, err := config.LoadGenesis(expandHome(cfg.Genesis.File))
	if err != nil {
		return nil, err
	}
	if g.Network != "" && g.Network != cfg.Network {
		return nil, fmt.Errorf("genesis file is for %s, node runs %s", g.Network, cfg.Network)
	}
	return g, nil
}
