package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"price_user" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" default:"price_password" description:"Database password (required)" required:"true"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"price_comb" description:"Database name"`

	// Ingestion configuration
	SourcesDir  string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing retailer source configuration files"`
	Source      string `long:"source" env:"SOURCE" description:"Run a single retailer source by name (default: all)"`
	Force       bool   `long:"force" env:"FORCE" description:"Reprocess files even when the ledger already marks them processed"`
	MaxPages    int    `long:"max-pages" env:"MAX_PAGES" description:"Override discovery page cap for all sources (0 keeps per-source values)"`
	DaysBack    int    `long:"days-back" env:"DAYS_BACK" default:"30" description:"Skip files whose declared timestamp is older than this many days"`
	WorkerCount int    `long:"worker-count" env:"WORKER_COUNT" default:"4" description:"Number of concurrent source workers"`
	BatchSize   int    `long:"batch-size" env:"BATCH_SIZE" default:"1000" description:"Number of records per upsert batch"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Asia/Jerusalem)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBHost:      raw.DBHost,
		DBPort:      raw.DBPort,
		DBUser:      raw.DBUser,
		DBPassword:  raw.DBPassword,
		DBName:      raw.DBName,
		SourcesDir:  raw.SourcesDir,
		Source:      raw.Source,
		Force:       raw.Force,
		MaxPages:    raw.MaxPages,
		DaysBack:    raw.DaysBack,
		WorkerCount: raw.WorkerCount,
		BatchSize:   raw.BatchSize,
		UserAgent:   raw.UserAgent,
		Timezone:    raw.Timezone,
		Debug:       raw.Debug,
		Version:     GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
