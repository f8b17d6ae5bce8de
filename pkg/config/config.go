// Package config loads server and optimizer settings from YAML, .env files
// and URBAN_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"urban_router/pkg/allocation"
	"urban_router/pkg/cache"
	"urban_router/pkg/geo"
	"urban_router/pkg/ingest"
	"urban_router/pkg/network"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "URBAN_"

// ErrInvalid is matched by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// FieldError reports one bad setting.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string { return fmt.Sprintf("config %s: %s", e.Field, e.Reason) }

func (e *FieldError) Is(target error) bool { return target == ErrInvalid }

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Data       DataConfig       `yaml:"data"`
	Network    NetworkConfig    `yaml:"network"`
	Cache      CacheConfig      `yaml:"cache"`
	Log        LogConfig        `yaml:"log"`
	Allocation AllocationConfig `yaml:"allocation"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxConcurrent  int           `yaml:"max_concurrent"`
	CORSOrigins    []string      `yaml:"cors_origins"`
}

type DataConfig struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"`
}

type NetworkConfig struct {
	CriticalPopulation int    `yaml:"critical_population"`
	Coordinates        string `yaml:"coordinates"`
}

type CacheConfig struct {
	Backend       string        `yaml:"backend"` // none, memory or redis
	TTL           time.Duration `yaml:"ttl"`
	MaxEntries    int           `yaml:"max_entries"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	Prefix        string        `yaml:"prefix"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

type AllocationConfig struct {
	MaxBuses         int     `yaml:"max_buses"`
	DemandThreshold  int     `yaml:"demand_threshold"`
	TargetCoverage   float64 `yaml:"target_coverage"`
	TrainCapacity    int     `yaml:"train_capacity"`
	Fare             float64 `yaml:"fare"`
	CostPerTrainHour float64 `yaml:"cost_per_train_hour"`
	MinTrains        int     `yaml:"min_trains"`
	MaxTrains        int     `yaml:"max_trains"`
}

// Default returns the built-in configuration.
func Default() *Config {
	bus := allocation.DefaultBusOptions()
	metro := allocation.DefaultMetroOptions()
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeout:    5 * time.Second,
			WriteTimeout:   10 * time.Second,
			RequestTimeout: 5 * time.Second,
			MaxConcurrent:  runtime.NumCPU() * 2,
		},
		Data:    DataConfig{Dir: "data", Format: "json"},
		Network: NetworkConfig{CriticalPopulation: network.DefaultCriticalPopulation, Coordinates: "auto"},
		Cache: CacheConfig{
			Backend:    "memory",
			TTL:        10 * time.Minute,
			MaxEntries: 10000,
			RedisAddr:  "localhost:6379",
			Prefix:     cache.DefaultPrefix,
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Allocation: AllocationConfig{
			MaxBuses:         bus.MaxBuses,
			DemandThreshold:  bus.DemandThreshold,
			TargetCoverage:   bus.TargetCoverage,
			TrainCapacity:    metro.TrainCapacity,
			Fare:             metro.Fare.InexactFloat64(),
			CostPerTrainHour: metro.CostPerTrainHour.InexactFloat64(),
			MinTrains:        metro.MinTrains,
			MaxTrains:        metro.MaxTrains,
		},
	}
}

// Load builds a Config from the defaults, the YAML file at path (skipped when
// empty), the given .env files and the process environment, then validates it.
// Variables already set in the environment win over .env files.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				log.WithField("file", f).Debug("No .env file found, using the environment")
				continue
			}
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overlays URBAN_* variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, &FieldError{Field: EnvPrefix + name, Reason: err.Error()})
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, &FieldError{Field: EnvPrefix + name, Reason: err.Error()})
				return
			}
			*dst = d
		}
	}

	str("ADDR", &c.Server.Addr)
	dur("REQUEST_TIMEOUT", &c.Server.RequestTimeout)
	num("MAX_CONCURRENT", &c.Server.MaxConcurrent)
	if v, ok := lookup(EnvPrefix + "CORS_ORIGINS"); ok {
		c.Server.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.CORSOrigins = append(c.Server.CORSOrigins, o)
			}
		}
	}
	str("DATA_DIR", &c.Data.Dir)
	str("DATA_FORMAT", &c.Data.Format)
	num("CRITICAL_POPULATION", &c.Network.CriticalPopulation)
	str("COORDINATES", &c.Network.Coordinates)
	str("CACHE_BACKEND", &c.Cache.Backend)
	dur("CACHE_TTL", &c.Cache.TTL)
	str("REDIS_ADDR", &c.Cache.RedisAddr)
	str("REDIS_PASSWORD", &c.Cache.RedisPassword)
	num("REDIS_DB", &c.Cache.RedisDB)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	num("MAX_BUSES", &c.Allocation.MaxBuses)
	return errors.Join(errs...)
}

// Validate reports every bad setting at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(field, format string, args ...any) {
		errs = append(errs, &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	if c.Server.Addr == "" {
		bad("server.addr", "must not be empty")
	}
	if c.Server.RequestTimeout <= 0 {
		bad("server.request_timeout", "must be positive")
	}
	if c.Server.MaxConcurrent <= 0 {
		bad("server.max_concurrent", "must be positive")
	}
	if _, err := ingest.ParseFormat(c.Data.Format); err != nil {
		bad("data.format", "%q is not json or csv", c.Data.Format)
	}
	if c.Network.CriticalPopulation <= 0 {
		bad("network.critical_population", "must be positive")
	}
	if _, err := geo.ParseCoordinates(c.Network.Coordinates); err != nil {
		bad("network.coordinates", "%v", err)
	}
	switch c.Cache.Backend {
	case "none", "memory", "redis":
	default:
		bad("cache.backend", "%q is not none, memory or redis", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		bad("cache.redis_addr", "required for the redis backend")
	}
	if c.Cache.TTL < 0 {
		bad("cache.ttl", "must not be negative")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		bad("log.level", "%v", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		bad("log.format", "%q is not text or json", c.Log.Format)
	}
	a := c.Allocation
	if a.MaxBuses <= 0 {
		bad("allocation.max_buses", "must be positive")
	}
	if a.DemandThreshold < 0 {
		bad("allocation.demand_threshold", "must not be negative")
	}
	if a.TargetCoverage < 0 || a.TargetCoverage > 1 {
		bad("allocation.target_coverage", "must be within 0..1")
	}
	if a.TrainCapacity <= 0 {
		bad("allocation.train_capacity", "must be positive")
	}
	if a.Fare < 0 || a.CostPerTrainHour < 0 {
		bad("allocation.fare", "fare and cost per train-hour must not be negative")
	}
	if a.MinTrains < 1 || a.MaxTrains < a.MinTrains {
		bad("allocation.max_trains", "need 1 <= min_trains <= max_trains")
	}
	return errors.Join(errs...)
}

// DataFormat returns the parsed dataset format.
func (c *Config) DataFormat() ingest.Format {
	f, _ := ingest.ParseFormat(c.Data.Format)
	return f
}

// NetworkOptions returns the network build options.
func (c *Config) NetworkOptions() network.Options {
	coords, _ := geo.ParseCoordinates(c.Network.Coordinates)
	return network.Options{CriticalPopulation: c.Network.CriticalPopulation, Coordinates: coords}
}

// BusOptions returns the bus allocation options.
func (c *Config) BusOptions() allocation.BusOptions {
	return allocation.BusOptions{
		MaxBuses:        c.Allocation.MaxBuses,
		DemandThreshold: c.Allocation.DemandThreshold,
		TargetCoverage:  c.Allocation.TargetCoverage,
	}
}

// MetroOptions returns the metro scheduling options.
func (c *Config) MetroOptions() allocation.MetroOptions {
	opts := allocation.DefaultMetroOptions()
	opts.TrainCapacity = c.Allocation.TrainCapacity
	opts.Fare = decimal.NewFromFloat(c.Allocation.Fare)
	opts.CostPerTrainHour = decimal.NewFromFloat(c.Allocation.CostPerTrainHour)
	opts.MinTrains = c.Allocation.MinTrains
	opts.MaxTrains = c.Allocation.MaxTrains
	return opts
}

// RedisOptions returns the options for cache.DialRedis.
func (c *Config) RedisOptions() cache.RedisOptions {
	return cache.RedisOptions{
		Addr:     c.Cache.RedisAddr,
		Password: c.Cache.RedisPassword,
		DB:       c.Cache.RedisDB,
		Prefix:   c.Cache.Prefix,
		TTL:      c.Cache.TTL,
	}
}

// SetupLogging applies the log level and format to the standard logrus logger.
func SetupLogging(lc LogConfig) error {
	level, err := log.ParseLevel(lc.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	if lc.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
