package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvDelayMS         = "DELAY_MS"
	EnvUserAgent       = "USER_AGENT"
	EnvFlareSolverrURL = "FLARESOLVERR_URL"

	// DefaultEnvFile is read from the working directory when present.
	DefaultEnvFile = ".env"
)

// Env resolves environment variables. Values from the process environment
// win over values read from .env files.
type Env struct {
	lookup func(string) (string, bool)
	dotenv map[string]string
}

// NewEnv creates an Env backed by lookup (usually os.LookupEnv) and the given
// .env files. Files that do not exist are skipped; malformed files are errors.
func NewEnv(lookup func(string) (string, bool), dotenvPaths ...string) (*Env, error) {
	env := &Env{
		lookup: lookup,
		dotenv: make(map[string]string),
	}

	for _, path := range dotenvPaths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		values, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		for k, v := range values {
			if _, ok := env.dotenv[k]; !ok {
				env.dotenv[k] = v
			}
		}
	}

	return env, nil
}

// Lookup returns the value of key and whether it was set.
func (e *Env) Lookup(key string) (string, bool) {
	if e.lookup != nil {
		if v, ok := e.lookup(key); ok {
			return v, true
		}
	}
	v, ok := e.dotenv[key]
	return v, ok
}

// ParseDelayMS parses a DELAY_MS value.
// Only a plain non-negative base-10 integer is accepted.
func ParseDelayMS(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrMissingDelay
	}

	ms, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDelay, raw)
	}
	if ms < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidDelay, ms)
	}

	return time.Duration(ms) * time.Millisecond, nil
}

// ApplyEnv reads DELAY_MS, USER_AGENT and FLARESOLVERR_URL into the config.
// DELAY_MS is required; the others keep their current value when unset.
func (c *Config) ApplyEnv(env *Env) error {
	raw, ok := env.Lookup(EnvDelayMS)
	if !ok {
		return ErrMissingDelay
	}
	delay, err := ParseDelayMS(raw)
	if err != nil {
		return err
	}
	c.Delay = delay

	if ua, ok := env.Lookup(EnvUserAgent); ok {
		c.UserAgent = strings.TrimSpace(ua)
	}

	if endpoint, ok := env.Lookup(EnvFlareSolverrURL); ok && strings.TrimSpace(endpoint) != "" {
		c.FlareSolverrURL = strings.TrimSpace(endpoint)
	}

	return nil
}
