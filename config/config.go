package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Snapshot store backends.
const (
	StoreFile   = "file"
	StorePebble = "pebble"
)

type Config struct {
	Port          int
	DataDir       string
	User          string
	Password      string
	LogLevel      int    // 0=off, 1=SQL statements, 2=statement traces
	Order         int    // B+ tree order for new tables
	SnapshotStore string // StoreFile or StorePebble
	Compress      bool   // snappy-compress index snapshots
	MaxConns      int    // 0 means unlimited
	ShowVersion   bool
}

// Parse reads the configuration from the command line, falling back to
// LEAFDB_* environment variables. It exits on invalid input.
func Parse() *Config {
	cfg, err := ParseArgs(os.Args[0], os.Args[1:], os.Stderr)
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return cfg
}

// ParseArgs parses args into a Config. Usage and flag errors go to out.
func ParseArgs(name string, args []string, out io.Writer) (*Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)

	cfg := &Config{}
	fs.IntVar(&cfg.Port, "port", envInt("LEAFDB_PORT", 5433), "listen port")
	fs.StringVar(&cfg.DataDir, "datadir", envStr("LEAFDB_DATADIR", "./data"), "data directory")
	fs.StringVar(&cfg.User, "user", envStr("LEAFDB_USER", "admin"), "auth username")
	fs.StringVar(&cfg.Password, "password", envStr("LEAFDB_PASSWORD", ""), "auth password")
	fs.IntVar(&cfg.LogLevel, "log-level", envInt("LEAFDB_LOG_LEVEL", 0), "log verbosity (0=off, 1=SQL statements, 2=traces)")
	fs.IntVar(&cfg.Order, "order", envInt("LEAFDB_ORDER", 8), "B+ tree order for new tables")
	fs.StringVar(&cfg.SnapshotStore, "snapshot-store", envStr("LEAFDB_SNAPSHOT_STORE", StoreFile), "index snapshot store (file or pebble)")
	fs.BoolVar(&cfg.Compress, "compress", envBool("LEAFDB_COMPRESS", false), "snappy-compress index snapshots")
	fs.IntVar(&cfg.MaxConns, "max-conns", envInt("LEAFDB_MAX_CONNS", 0), "maximum concurrent connections (0 = unlimited)")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.Order < 2 {
		return nil, fmt.Errorf("order %d is below the minimum of 2", cfg.Order)
	}
	if cfg.SnapshotStore != StoreFile && cfg.SnapshotStore != StorePebble {
		return nil, fmt.Errorf("unknown snapshot store %q (want %s or %s)", cfg.SnapshotStore, StoreFile, StorePebble)
	}
	if cfg.MaxConns < 0 {
		return nil, fmt.Errorf("max-conns must not be negative")
	}
	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
