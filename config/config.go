// Package config loads a pool.Config from a TOML file, overlaying
// environment variables the way a standalone deployment of the pool
// would want: a file for the stable shape, env vars for the knob an
// operator actually reaches for in production (CAQTI_POOL_MAX_SIZE).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// File is the on-disk shape of a pool configuration. Unlike pool.Config
// (whose optional fields are pointers so "unset" is distinguishable from
// "zero"), File uses plain values. Zero means "unset" for max_use_count
// and max_idle_age; max_idle_size = 0 is a real setting (no entry is kept
// idle), and max_size must be at least 1.
type File struct {
	MaxSize     int           `toml:"max_size"`
	MaxIdleSize int           `toml:"max_idle_size"`
	MaxUseCount int           `toml:"max_use_count"`
	MaxIdleAge  time.Duration `toml:"max_idle_age"`
}

// DefaultFile returns a File with the pool engine's own defaults spelled
// out, so a generated config file is self-documenting.
func DefaultFile() File {
	return File{
		MaxSize:     8,
		MaxIdleSize: 8,
		MaxUseCount: 100,
		MaxIdleAge:  0,
	}
}

// Load reads a TOML config file at path, falling back to DefaultFile if
// it doesn't exist, then overlays CAQTI_POOL_MAX_SIZE from the
// environment if set and well-formed (mirroring the pool engine's own
// env-var contract so a deployment gets the same override whether or not
// it ships a file). Validation runs after the overlay, since the
// overlay can change MaxSize and a value that was valid pre-overlay
// (e.g. max_size=8, max_idle_size=8) is not guaranteed to stay valid
// once the environment shrinks it (e.g. CAQTI_POOL_MAX_SIZE=4).
func Load(path string) (File, error) {
	f := DefaultFile()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return File{}, fmt.Errorf("reading pool config file: %w", err)
		}
	} else if err := toml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parsing pool config file: %w", err)
	}

	f = overlayEnv(f)
	if err := Validate(f); err != nil {
		return File{}, fmt.Errorf("invalid pool config: %w", err)
	}

	return f, nil
}

// Save writes f to path as TOML, creating parent directories as needed.
func Save(f File, path string) error {
	data, err := toml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling pool config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating pool config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks a File for the same bounds pool.New enforces, so a
// malformed config file is rejected before it ever reaches New.
func Validate(f File) error {
	if f.MaxSize < 1 {
		return fmt.Errorf("max_size must be >= 1")
	}
	if f.MaxIdleSize < 0 || f.MaxIdleSize > f.MaxSize {
		return fmt.Errorf("max_idle_size must be in [0, max_size]")
	}
	if f.MaxUseCount < 0 {
		return fmt.Errorf("max_use_count must be >= 0")
	}
	return nil
}

func overlayEnv(f File) File {
	v := viper.New()
	v.AutomaticEnv()
	_ = v.BindEnv("max_size", "CAQTI_POOL_MAX_SIZE")

	if raw := v.GetString("max_size"); raw != "" {
		if n := v.GetInt("max_size"); n > 0 {
			f.MaxSize = n
		}
	}
	return f
}

// IntPtr is a small helper for building a pool.Config's optional int
// fields from a File's plain values; it is exported so cmd/caqtidemo
// doesn't need its own copy of lo.ToPtr.
func IntPtr(v int) *int { return lo.ToPtr(v) }

// DurationPtr mirrors IntPtr for time.Duration fields.
func DurationPtr(v time.Duration) *time.Duration { return lo.ToPtr(v) }
