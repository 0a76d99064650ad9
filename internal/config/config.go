// Package config loads the CLI settings from the environment, optionally
// seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every FORMFLOW_* setting. Flags override these values.
type Config struct {
	BaseURL        string        `env:"FORMFLOW_BASE_URL"`
	FlowID         string        `env:"FORMFLOW_FLOW_ID"`
	ProductCode    string        `env:"FORMFLOW_PRODUCT_CODE"`
	PartnerCode    string        `env:"FORMFLOW_PARTNER_CODE"`
	BranchCode     string        `env:"FORMFLOW_BRANCH_CODE"`
	DefaultPartner string        `env:"FORMFLOW_DEFAULT_PARTNER" default:"DEFAULT"`
	Timeout        time.Duration `env:"FORMFLOW_TIMEOUT" default:"30s"`
	RedisAddr      string        `env:"FORMFLOW_REDIS_ADDR"`
	RedisTTL       time.Duration `env:"FORMFLOW_REDIS_TTL" default:"1h"`
	MasterWorkers  int           `env:"FORMFLOW_MASTER_WORKERS" default:"4"`
	FixtureDir     string        `env:"FORMFLOW_FIXTURE_DIR"`
	ListenAddr     string        `env:"FORMFLOW_LISTEN_ADDR" default:":8080"`
	Verbose        bool          `env:"FORMFLOW_VERBOSE"`
}

// Load reads the given .env files (".env" when none are named) into the
// process environment, then builds a Config from it. Missing .env files are
// not an error; variables already set in the environment win.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", file, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from lookup, applying defaults for unset
// variables.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		envTag := field.Tag.Get("env")
		if envTag == "" {
			continue
		}
		value, exists := lookup(envTag)
		if !exists || value == "" {
			value, exists = field.Tag.Lookup("default")
		}
		if !exists {
			continue
		}
		if err := set(v.Field(i), value); err != nil {
			return nil, fmt.Errorf("config: invalid value for %s: %w", envTag, err)
		}
	}
	return cfg, nil
}

func set(field reflect.Value, value string) error {
	switch field.Interface().(type) {
	case time.Duration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(n))
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported kind %s", field.Kind())
	}
	return nil
}
