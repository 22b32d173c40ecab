// Package config loads journal tunables from the process environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/gumlog/journal/internal/journal"
)

// envPrefix namespaces every variable this package reads.
const envPrefix = "JOURNAL_"

// FromEnv builds a journal.Config by overlaying environment variables on
// top of journal.DefaultConfig. Unset variables keep the default; malformed
// ones are reported as the offending variable name.
func FromEnv() (journal.Config, error) {
	cfg := journal.DefaultConfig()

	var err error
	if cfg.SegmentBytes, err = uintEnv("SEGMENT_BYTES", cfg.SegmentBytes); err != nil {
		return cfg, err
	}
	if cfg.SegmentAgeMillis, err = millisEnv("SEGMENT_AGE", cfg.SegmentAgeMillis); err != nil {
		return cfg, err
	}
	if cfg.FlushIntervalMessages, err = uintEnv("FLUSH_INTERVAL_MESSAGES", cfg.FlushIntervalMessages); err != nil {
		return cfg, err
	}
	if cfg.FlushAgeMillis, err = millisEnv("FLUSH_AGE", cfg.FlushAgeMillis); err != nil {
		return cfg, err
	}
	if cfg.RetentionBytes, err = intEnv("RETENTION_BYTES", cfg.RetentionBytes); err != nil {
		return cfg, err
	}
	if cfg.RetentionMillis, err = millisEnv("RETENTION_AGE", cfg.RetentionMillis); err != nil {
		return cfg, err
	}
	if cfg.FlushCheckMillis, err = millisEnv("FLUSH_CHECK", cfg.FlushCheckMillis); err != nil {
		return cfg, err
	}
	if cfg.FlushCheckpointMillis, err = millisEnv("FLUSH_CHECKPOINT_CHECK", cfg.FlushCheckpointMillis); err != nil {
		return cfg, err
	}
	if cfg.RetentionCheckMillis, err = millisEnv("RETENTION_CHECK", cfg.RetentionCheckMillis); err != nil {
		return cfg, err
	}
	if cfg.FileDeleteDelayMillis, err = millisEnv("FILE_DELETE_DELAY", cfg.FileDeleteDelayMillis); err != nil {
		return cfg, err
	}
	if cfg.IndexInterval, err = uintEnv("INDEX_INTERVAL", cfg.IndexInterval); err != nil {
		return cfg, err
	}
	if cfg.MaxIndexSize, err = uintEnv("MAX_INDEX_SIZE", cfg.MaxIndexSize); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Dir returns the journal directory to open, defaulting to ~/.gumlog/journal
// the way the teacher's config package defaults its PKI material directory.
func Dir() (string, error) {
	if dir := os.Getenv(envPrefix + "DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return home + "/.gumlog/journal", nil
}

// HTTPAddr returns the listen address for the HTTP front door.
func HTTPAddr() string {
	if addr := os.Getenv(envPrefix + "HTTP_ADDR"); addr != "" {
		return addr
	}
	return ":8080"
}

func uintEnv(name string, def uint64) (uint64, error) {
	raw := os.Getenv(envPrefix + name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, badEnv(name, err)
	}
	return v, nil
}

func intEnv(name string, def int64) (int64, error) {
	raw := os.Getenv(envPrefix + name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, badEnv(name, err)
	}
	return v, nil
}

// millisEnv reads a duration (Go duration syntax, e.g. "90s", "7h") and
// returns it in milliseconds.
func millisEnv(name string, def int64) (int64, error) {
	raw := os.Getenv(envPrefix + name)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, badEnv(name, err)
	}
	return int64(d / time.Millisecond), nil
}

func badEnv(name string, err error) error {
	return &envError{name: envPrefix + name, err: err}
}

type envError struct {
	name string
	err  error
}

func (e *envError) Error() string { return "config: invalid " + e.name + ": " + e.err.Error() }
func (e *envError) Unwrap() error { return e.err }
