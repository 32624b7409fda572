// Package config loads Linkrem settings from an ini file and LINKREM_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-ini/ini"
	"github.com/spf13/viper"
)

const (
	KeyServerPort        = "Server.Port"
	KeyServerBaseURL     = "Server.BaseURL"
	KeyServerMode        = "Server.Mode"
	KeyServerCORSOrigins = "Server.CORSOrigins"
	KeyDBDriver          = "Database.Driver"
	KeyDBDSN             = "Database.DSN"
	KeyAuthJWTSecret     = "Auth.JWTSecret"
	KeyAuthTokenTTL      = "Auth.TokenTTL"
	KeyRedisAddr         = "Redis.Addr"
	KeyRedisPassword     = "Redis.Password"
	KeyRedisDB           = "Redis.DB"
	KeyCacheTTL          = "Cache.TTL"
	KeyOTLPEndpoint      = "Telemetry.OTLPEndpoint"
	KeyServiceName       = "Telemetry.ServiceName"
	KeySampleRatio       = "Telemetry.SampleRatio"
	KeySweepSchedule     = "Sweep.Schedule"
	KeyLogLevel          = "Log.Level"
	KeyLogFormat         = "Log.Format"
	KeyRatePerMinute     = "RateLimit.PerMinute"
	KeyRateBurst         = "RateLimit.Burst"
)

// DefaultPath is where the ini file is looked up when no path is given
const DefaultPath = "data/linkrem.ini"

const envPrefix = "LINKREM"

var defaults = map[string]interface{}{
	KeyServerPort:        "8080",
	KeyServerBaseURL:     "http://localhost:8080",
	KeyServerMode:        "release",
	KeyServerCORSOrigins: "*",
	KeyDBDriver:          "sqlite",
	KeyDBDSN:             "linkrem.db",
	KeyAuthTokenTTL:      "24h",
	KeyRedisDB:           0,
	KeyCacheTTL:          "5m",
	KeyServiceName:       "linkrem",
	KeySampleRatio:       1.0,
	KeySweepSchedule:     "@hourly",
	KeyLogLevel:          "info",
	KeyLogFormat:         "text",
	KeyRatePerMinute:     30,
	KeyRateBurst:         10,
}

// Config holds the resolved settings
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Telemetry TelemetryConfig
	Sweep     SweepConfig
	Log       LogConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port        string
	BaseURL     string
	Mode        string
	CORSOrigins []string
}

type DatabaseConfig struct {
	Driver string
	DSN    string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CacheConfig struct {
	TTL time.Duration
}

type TelemetryConfig struct {
	OTLPEndpoint string
	ServiceName  string
	SampleRatio  float64
}

type SweepConfig struct {
	Schedule string
}

type LogConfig struct {
	Level  string
	Format string
}

type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

// Load reads path (if it exists) and applies environment overrides.
// An empty path means DefaultPath. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	vp := viper.New()
	for k, v := range defaults {
		vp.SetDefault(k, v)
	}

	iniCfg, err := ini.Load(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if iniCfg != nil {
		for _, section := range iniCfg.Sections() {
			for _, key := range section.Keys() {
				viperKey := section.Name() + "." + key.Name()
				if section.Name() == ini.DefaultSection {
					viperKey = key.Name()
				}
				vp.Set(viperKey, key.Value())
			}
		}
	}

	applyEnv(vp)
	return fromViper(vp)
}

// EnvName returns the environment variable that overrides key
func EnvName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func applyEnv(vp *viper.Viper) {
	for key := range defaults {
		if value, ok := os.LookupEnv(EnvName(key)); ok {
			vp.Set(key, value)
		}
	}
	for _, key := range []string{KeyAuthJWTSecret, KeyRedisAddr, KeyRedisPassword, KeyOTLPEndpoint} {
		if value, ok := os.LookupEnv(EnvName(key)); ok {
			vp.Set(key, value)
		}
	}
}

func fromViper(vp *viper.Viper) (*Config, error) {
	ttl, err := time.ParseDuration(vp.GetString(KeyAuthTokenTTL))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyAuthTokenTTL, err)
	}
	cacheTTL, err := time.ParseDuration(vp.GetString(KeyCacheTTL))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyCacheTTL, err)
	}

	driver := strings.ToLower(vp.GetString(KeyDBDriver))
	if driver != "sqlite" && driver != "mysql" {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	var origins []string
	for _, o := range strings.Split(vp.GetString(KeyServerCORSOrigins), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:        vp.GetString(KeyServerPort),
			BaseURL:     strings.TrimSuffix(vp.GetString(KeyServerBaseURL), "/"),
			Mode:        vp.GetString(KeyServerMode),
			CORSOrigins: origins,
		},
		Database: DatabaseConfig{
			Driver: driver,
			DSN:    vp.GetString(KeyDBDSN),
		},
		Auth: AuthConfig{
			JWTSecret: vp.GetString(KeyAuthJWTSecret),
			TokenTTL:  ttl,
		},
		Redis: RedisConfig{
			Addr:     vp.GetString(KeyRedisAddr),
			Password: vp.GetString(KeyRedisPassword),
			DB:       vp.GetInt(KeyRedisDB),
		},
		Cache: CacheConfig{TTL: cacheTTL},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: vp.GetString(KeyOTLPEndpoint),
			ServiceName:  vp.GetString(KeyServiceName),
			SampleRatio:  vp.GetFloat64(KeySampleRatio),
		},
		Sweep: SweepConfig{Schedule: vp.GetString(KeySweepSchedule)},
		Log: LogConfig{
			Level:  vp.GetString(KeyLogLevel),
			Format: vp.GetString(KeyLogFormat),
		},
		RateLimit: RateLimitConfig{
			PerMinute: vp.GetInt(KeyRatePerMinute),
			Burst:     vp.GetInt(KeyRateBurst),
		},
	}, nil
}
