package cfg

import (
	"cmp"
	"fmt"
	"log/slog"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath string `long:"db-path" env:"DB_PATH" default:"./data/podcast-sync.db" description:"Path to the SQLite database file"`

	// Application configuration
	FeedsDir          string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing feed configuration files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl           string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://sync.example.com)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers for sync tasks"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"300" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for sync and admin endpoints (optional)"`
	Once              bool   `long:"once" env:"SYNC_ONCE" description:"Sync every enabled feed once, print the summary and exit"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"PodcastSync/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return LoadArgs(nil)
}

// LoadArgs parses the given arguments instead of os.Args when args is non-nil.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.WorkerCount < 1 {
		return nil, fmt.Errorf("worker count must be positive, got %d", raw.WorkerCount)
	}
	if raw.SchedulerInterval < 1 {
		return nil, fmt.Errorf("scheduler interval must be positive, got %d", raw.SchedulerInterval)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		FeedsDir:          raw.FeedsDir,
		Port:              raw.Port,
		BaseUrl:           raw.BaseUrl,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		Once:              raw.Once,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
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
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return err
		}
		time.Local = loc
	}
	return nil
}
