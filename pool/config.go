package pool

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/chizy7/ocaml-caqti/caqtierr"
)

// EnvMaxSize is the environment variable that overrides the default
// MaxSize when a Config leaves it unset.
const EnvMaxSize = "CAQTI_POOL_MAX_SIZE"

// Hard-coded fallbacks, used when neither Config nor the environment
// specifies a value.
const (
	fallbackMaxSize     = 8
	fallbackMaxUseCount = 100
)

// Factory creates a new resource. It is called outside the pool's mutex
// and may block; env is the opaque handle the pool was constructed with,
// passed through unexamined.
type Factory[R any] func(ctx context.Context, env any) (R, error)

// Destructor releases a resource. Called outside the mutex; it must
// absorb its own errors — the pool has nowhere to report them but a log
// line.
type Destructor[R any] func(r R)

// HealthCheck probes a resource before it is returned to the idle queue.
// The result is delivered to done, which may be invoked synchronously or
// from another goroutine, but exactly once.
type HealthCheck[R any] func(r R, done func(ok bool))

// Validator probes a resource pulled from the idle queue before handing
// it to a caller. It may block but must not panic.
type Validator[R any] func(r R) bool

// Config configures a Pool. All fields are optional; a nil field receives
// the default described in its comment.
type Config[R any] struct {
	// MaxSize bounds the number of resources the pool is accountable for
	// at once (idle + in-use + being-created). Default: 8, or the value
	// of CAQTI_POOL_MAX_SIZE if set and well-formed.
	MaxSize *int

	// MaxIdleSize bounds how many resources may sit idle at once; excess
	// releases are destroyed rather than repooled. Must be <= MaxSize.
	// Default: MaxSize.
	MaxIdleSize *int

	// MaxUseCount, if set, destroys a resource after this many checkouts
	// instead of repooling it. Default: 100.
	MaxUseCount *int

	// MaxIdleAge, if set, destroys idle entries older than this once the
	// alarm (or an opportunistic check) notices. Default: disabled.
	MaxIdleAge *time.Duration

	// Check is the optional asynchronous health probe run before an
	// entry is returned to the idle queue. Default: always healthy.
	Check HealthCheck[R]

	// Validate is the optional synchronous probe run on an entry pulled
	// from the idle queue before checkout. Default: always valid.
	Validate Validator[R]

	// Alarm is the timer collaborator used for idle-age expiry. Default:
	// TimeAlarm (time.AfterFunc-backed).
	Alarm Alarm

	// Env is an opaque handle passed through to Factory on every call.
	Env any

	// Concurrency sizes the background worker pool used for async free()
	// calls and alarm-triggered disposal. Default: 4.
	Concurrency int

	// Name identifies this pool in log lines and in the CreateError
	// returned for a factory failure, when a process runs more than one.
	Name string
}

type resolvedConfig struct {
	maxSize     int
	maxIdleSize int
	maxUseCount int // 0 means unset / unlimited
	maxIdleAge  time.Duration
}

func resolveConfig[R any](c Config[R]) (resolvedConfig, error) {
	maxSize := defaultMaxSize()
	if c.MaxSize != nil {
		maxSize = *c.MaxSize
	}
	if maxSize < 1 {
		return resolvedConfig{}, caqtierr.Wrap(caqtierr.CodeValidation, "max_size must be >= 1", caqtierr.ErrInvalidConfig)
	}

	maxIdleSize := maxSize
	if c.MaxIdleSize != nil {
		maxIdleSize = *c.MaxIdleSize
	}
	if maxIdleSize < 0 || maxIdleSize > maxSize {
		return resolvedConfig{}, caqtierr.Wrap(caqtierr.CodeValidation, "max_idle_size must be in [0, max_size]", caqtierr.ErrInvalidConfig)
	}

	maxUseCount := fallbackMaxUseCount
	if c.MaxUseCount != nil {
		if *c.MaxUseCount <= 0 {
			return resolvedConfig{}, caqtierr.Wrap(caqtierr.CodeValidation, "max_use_count must be > 0", caqtierr.ErrInvalidConfig)
		}
		maxUseCount = *c.MaxUseCount
	}

	var maxIdleAge time.Duration
	if c.MaxIdleAge != nil {
		maxIdleAge = *c.MaxIdleAge
	}

	return resolvedConfig{
		maxSize:     maxSize,
		maxIdleSize: maxIdleSize,
		maxUseCount: maxUseCount,
		maxIdleAge:  maxIdleAge,
	}, nil
}

// defaultMaxSize reads CAQTI_POOL_MAX_SIZE through viper's environment
// binding. A malformed or non-positive value is logged and ignored in
// favor of the hard-coded fallback, per the env var's documented
// contract: the override degrades gracefully rather than rejecting the
// pool's construction outright.
func defaultMaxSize() int {
	v := viper.New()
	v.AutomaticEnv()
	_ = v.BindEnv("max_size", EnvMaxSize)

	raw := v.GetString("max_size")
	if raw == "" {
		return fallbackMaxSize
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		log.WithField("value", raw).Warn("invalid CAQTI_POOL_MAX_SIZE, using default")
		return fallbackMaxSize
	}
	return n
}
