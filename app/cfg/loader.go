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
	DBPath string `long:"db-path" env:"DB_PATH" default:"./rss-monitor.db" description:"Path to the SQLite database file"`

	// Application configuration
	Port             string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey     string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	SeedsFile        string `long:"seeds-file" env:"SEEDS_FILE" description:"YAML file with feeds and subscriptions to register on startup"`
	MinimalInterval  int    `long:"minimal-interval" env:"MINIMAL_INTERVAL" default:"5" description:"Minimal minutes between two checks of the same feed"`
	DefaultInterval  int    `long:"default-interval" env:"DEFAULT_INTERVAL" default:"10" description:"Default minutes between feed checks"`
	MonitorTimeout   int    `long:"monitor-timeout" env:"MONITOR_TIMEOUT" default:"600" description:"Hard timeout for a single feed check in seconds"`
	SendTimeout      int    `long:"send-timeout" env:"SEND_TIMEOUT" default:"510" description:"Per-subscriber delivery timeout in seconds"`
	ErrorLoggingChat int64  `long:"error-logging-chat" env:"ERROR_LOGGING_CHAT" description:"Chat ID receiving operator error reports"`
	WebhookURL       string  `long:"webhook-url" env:"WEBHOOK_URL" description:"Base URL of the delivery gateway (dry-run logging when unset)"`
	ExtractContent   bool    `long:"extract-content" env:"EXTRACT_CONTENT" description:"Extract full text from linked pages for content-less entries"`
	FloodRate        float64 `long:"flood-rate" env:"FLOOD_RATE" default:"0.5" description:"Per-user delivery rate limit in messages per second"`
	FloodBurst       int     `long:"flood-burst" env:"FLOOD_BURST" default:"3" description:"Per-user delivery burst size"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"RSS Monitor/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
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
		DBPath:           raw.DBPath,
		Port:             raw.Port,
		APIAccessKey:     raw.APIAccessKey,
		SeedsFile:        raw.SeedsFile,
		MinimalInterval:  raw.MinimalInterval,
		DefaultInterval:  raw.DefaultInterval,
		MonitorTimeout:   raw.MonitorTimeout,
		SendTimeout:      raw.SendTimeout,
		ErrorLoggingChat: raw.ErrorLoggingChat,
		WebhookURL:       raw.WebhookURL,
		ExtractContent:   raw.ExtractContent,
		FloodRate:        raw.FloodRate,
		FloodBurst:       raw.FloodBurst,
		UserAgent:        raw.UserAgent,
		Timezone:         raw.Timezone,
		Debug:            raw.Debug,
		Version:          GetVersion(),
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

// Set replaces the global configuration. Intended for tests.
func Set(c *Cfg) {
	globalCfg = c
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
