package cfg

import (
	"cmp"
	"errors"
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
	// Storage configuration
	DBPath     string `long:"db-path" env:"DB_PATH" default:"./data/tourney.db" description:"Path to the SQLite database file"`
	SourcesDir string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing topic source configuration files"`

	// Application configuration
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl           string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://tourneys.example.com)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"3" description:"Number of background workers for topic processing"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"60" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Forum API configuration
	ForumBaseURL      string `long:"forum-base-url" env:"FORUM_BASE_URL" default:"https://osu.ppy.sh" description:"Base URL of the forum and its API"`
	ForumClientID     string `long:"forum-client-id" env:"FORUM_CLIENT_ID" description:"OAuth client ID for the forum API"`
	ForumClientSecret string `long:"forum-client-secret" env:"FORUM_CLIENT_SECRET" description:"OAuth client secret for the forum API"`
	LookupDelay       int    `long:"lookup-delay" env:"LOOKUP_DELAY_MS" default:"1000" description:"Minimum delay between user lookups in milliseconds"`
	LookupMaxRetries  int    `long:"lookup-max-retries" env:"LOOKUP_MAX_RETRIES" default:"3" description:"Maximum retries for a rate limited user lookup"`
	LookupTimeout     string `long:"lookup-timeout" env:"LOOKUP_TIMEOUT" default:"10s" description:"Per-request timeout for user lookups"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Tourney Comb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Asia/Seoul)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
	LogFile   string `long:"log-file" env:"LOG_FILE" description:"Also write logs to this file with size based rotation"`
}

// Load parses command line flags and environment variables. It returns
// nil, nil when --help was requested.
func Load() (*Cfg, error) {
	return load(nil)
}

func load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	lookupTimeout, err := time.ParseDuration(raw.LookupTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse lookup timeout: %w", err)
	}

	if raw.WorkerCount < 1 {
		return nil, fmt.Errorf("worker count must be positive, got %d", raw.WorkerCount)
	}
	if raw.SchedulerInterval < 1 {
		return nil, fmt.Errorf("scheduler interval must be positive, got %d", raw.SchedulerInterval)
	}
	if raw.LookupDelay < 0 || raw.LookupMaxRetries < 0 {
		return nil, fmt.Errorf("lookup delay and retries must be non-negative")
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		SourcesDir:        raw.SourcesDir,
		Port:              raw.Port,
		BaseUrl:           raw.BaseUrl,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		ForumBaseURL:      raw.ForumBaseURL,
		ForumClientID:     raw.ForumClientID,
		ForumClientSecret: raw.ForumClientSecret,
		LookupDelay:       time.Duration(raw.LookupDelay) * time.Millisecond,
		LookupMaxRetries:  raw.LookupMaxRetries,
		LookupTimeout:     lookupTimeout,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		LogFile:           raw.LogFile,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	return cfg, nil
}

func applyTimezone(timezone string) error {
	if timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}
	time.Local = loc
	return nil
}
