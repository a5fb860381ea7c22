package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrWatchDirMissing is returned when the watch directory does not exist
	// or is not a directory.
	ErrWatchDirMissing = errors.New("watch directory missing")

	// ErrInvalid is wrapped by every Validate failure.
	ErrInvalid = errors.New("invalid config")
)

// Config holds every tunable of the relay. All keys are optional; defaults
// are applied by Parse.
type Config struct {
	WatchDir       string `env:"WATCH_DIR"`
	Destination    string `env:"RTMP_URL"`
	SegmentPattern string `env:"SEGMENT_PATTERN" envDefault:"*.mp4"`

	// Seconds.
	MinFileAge      int `env:"MIN_FILE_AGE" envDefault:"30"`
	RecentCutoff    int `env:"RECENT_CUTOFF" envDefault:"60"`
	CheckInterval   int `env:"CHECK_INTERVAL" envDefault:"5"`
	RetryCooldown   int `env:"RETRY_COOLDOWN" envDefault:"300"`
	ValidateTimeout int `env:"VALIDATE_TIMEOUT" envDefault:"10"`
	ForwardTimeout  int `env:"FORWARD_TIMEOUT" envDefault:"3600"`
	PrecheckTimeout int `env:"PRECHECK_TIMEOUT" envDefault:"5"`

	MaxRetries  int  `env:"MAX_RETRIES" envDefault:"3"`
	HoldNewest  bool `env:"HOLD_NEWEST" envDefault:"false"`
	WatchEvents bool `env:"WATCH_EVENTS" envDefault:"true"`

	FFmpegPath  string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	FFprobePath string `env:"FFPROBE_PATH" envDefault:"ffprobe"`

	StatusAddr string `env:"STATUS_ADDR" envDefault:":9108"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat  string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// Parse builds a Config from the process environment. WatchDir defaults to
// ~/camera_data when unset.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.WatchDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home dir: %w", err)
		}
		cfg.WatchDir = filepath.Join(home, "camera_data")
	}
	return cfg, nil
}

// Validate checks value ranges. It does not touch the filesystem; see
// CheckWatchDir.
func (c Config) Validate() error {
	switch {
	case c.MinFileAge < 0:
		return fmt.Errorf("%w: MIN_FILE_AGE must be >= 0", ErrInvalid)
	case c.RecentCutoff < c.MinFileAge:
		return fmt.Errorf("%w: RECENT_CUTOFF (%d) must be >= MIN_FILE_AGE (%d)", ErrInvalid, c.RecentCutoff, c.MinFileAge)
	case c.MaxRetries <= 0:
		return fmt.Errorf("%w: MAX_RETRIES must be > 0", ErrInvalid)
	case c.CheckInterval <= 0:
		return fmt.Errorf("%w: CHECK_INTERVAL must be > 0", ErrInvalid)
	case c.RetryCooldown < 0:
		return fmt.Errorf("%w: RETRY_COOLDOWN must be >= 0", ErrInvalid)
	case c.ValidateTimeout <= 0 || c.ForwardTimeout <= 0 || c.PrecheckTimeout <= 0:
		return fmt.Errorf("%w: VALIDATE_TIMEOUT, FORWARD_TIMEOUT and PRECHECK_TIMEOUT must be > 0", ErrInvalid)
	}
	if _, err := filepath.Match(c.SegmentPattern, ""); err != nil {
		return fmt.Errorf("%w: SEGMENT_PATTERN %q: %v", ErrInvalid, c.SegmentPattern, err)
	}
	return nil
}

// CheckWatchDir reports ErrWatchDirMissing if WatchDir is not an existing directory.
func (c Config) CheckWatchDir() error {
	info, err := os.Stat(c.WatchDir)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWatchDirMissing, c.WatchDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrWatchDirMissing, c.WatchDir)
	}
	return nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// MinFileAgeDuration returns MinFileAge as a duration.
func (c Config) MinFileAgeDuration() time.Duration { return seconds(c.MinFileAge) }

// RecentCutoffDuration returns RecentCutoff as a duration.
func (c Config) RecentCutoffDuration() time.Duration { return seconds(c.RecentCutoff) }

// CheckIntervalDuration returns CheckInterval as a duration.
func (c Config) CheckIntervalDuration() time.Duration { return seconds(c.CheckInterval) }

// RetryCooldownDuration returns RetryCooldown as a duration.
func (c Config) RetryCooldownDuration() time.Duration { return seconds(c.RetryCooldown) }

// ValidateTimeoutDuration returns ValidateTimeout as a duration.
func (c Config) ValidateTimeoutDuration() time.Duration { return seconds(c.ValidateTimeout) }

// ForwardTimeoutDuration returns ForwardTimeout as a duration.
func (c Config) ForwardTimeoutDuration() time.Duration { return seconds(c.ForwardTimeout) }

// PrecheckTimeoutDuration returns PrecheckTimeout as a duration.
func (c Config) PrecheckTimeoutDuration() time.Duration { return seconds(c.PrecheckTimeout) }
