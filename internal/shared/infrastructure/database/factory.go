package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Config selects and configures a driver.
type Config struct {
	// Driver is detected from URL when empty or "auto".
	Driver Driver
	URL    string
	// SQLitePath defaults to ~/.keel/keel.db.
	SQLitePath string
	// MaxConns caps the PostgreSQL pool.
	MaxConns int
}

// Opener opens a connection for one driver.
type Opener func(ctx context.Context, cfg Config) (Connection, error)

var (
	openersMu sync.RWMutex
	openers   = map[Driver]Opener{}
)

// Register makes a driver available to NewConnection. The postgres and
// sqlite subpackages call it from init, so a blank import enables a driver.
func Register(driver Driver, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[driver] = open
}

// NewConnection opens a connection with the configured or detected driver.
func NewConnection(ctx context.Context, cfg Config) (Connection, error) {
	if cfg.Driver == "" || cfg.Driver == "auto" {
		cfg.Driver = DetectDriver(cfg.URL)
	}
	openersMu.RLock()
	open, ok := openers[cfg.Driver]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("database driver %q is not registered", cfg.Driver)
	}
	return open(ctx, cfg)
}

// DefaultSQLitePath is ~/.keel/keel.db, or ./.keel/keel.db without a home.
func DefaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".keel", "keel.db")
}
