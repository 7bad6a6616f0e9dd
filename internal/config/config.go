// Package config provides layered configuration loading for the apiprobe service.
// It merges struct defaults -> optional .env file -> environment variables, then validates.
//
// The database connection string is intentionally not part of Config: only the
// name of the variable holding it is. Readiness checks resolve the value on every
// call so a rotated or late-provisioned DSN is picked up without a restart.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for all environment variables read by Load.
const EnvPrefix = "APIPROBE_"

// Config holds the merged runtime configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required,ip_port"`
	// DatabaseURLEnv names the environment variable holding the DSN.
	DatabaseURLEnv string `koanf:"database_url_env" validate:"required"`
	// ConnectTimeout bounds each readiness dial; 0 disables the deadline.
	ConnectTimeout  time.Duration `koanf:"connect_timeout" validate:"min=0"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	LogLevel        slog.Level    `koanf:"log_level"`
	LogFormat       string        `koanf:"log_format" validate:"required,oneof=text json"`
}

// DefaultAppConfig is the baseline every other layer overrides.
var DefaultAppConfig = Config{
	Addr:            ":8080",
	DatabaseURLEnv:  "DATABASE_URL",
	ConnectTimeout:  5 * time.Second,
	ReadTimeout:     5 * time.Second,
	WriteTimeout:    10 * time.Second,
	IdleTimeout:     120 * time.Second,
	ShutdownTimeout: 10 * time.Second,
	LogLevel:        slog.LevelInfo,
	LogFormat:       "text",
}

// Loader seams; swapped in tests to exercise each failure path.
var (
	defaultLoader = func(k *koanf.Koanf) error {
		return k.Load(structs.Provider(DefaultAppConfig, "koanf"), nil)
	}
	// dotenvLoader populates the process environment from ./.env without
	// overriding variables that are already set.
	dotenvLoader = func() error {
		err := godotenv.Load()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	envLoader = func(k *koanf.Koanf) error {
		return k.Load(env.Provider(".", env.Opt{
			Prefix: EnvPrefix,
			TransformFunc: func(key, value string) (string, any) {
				return strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), value
			},
		}), nil)
	}
	registerValidators = func(v *validator.Validate) error {
		return v.RegisterValidation("ip_port", validIPPort)
	}
)

// Load builds the Config from defaults, .env and environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if err := dotenvLoader(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				StringToLogLevel(),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("koanf"), ",", 2)[0]
	})
	if err := registerValidators(v); err != nil {
		return nil, fmt.Errorf("register validators: %w", err)
	}
	if err := v.Struct(&cfg); err != nil {
		return nil, describeValidation(err)
	}
	if cfg.ConnectTimeout > 0 && cfg.ConnectTimeout >= cfg.WriteTimeout {
		return nil, errors.New("connect_timeout must be less than write_timeout")
	}
	return &cfg, nil
}

// describeValidation flattens validator errors into a single readable error
// naming the offending keys as they appear in the environment.
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// validIPPort accepts "host:port" where host is empty or an IP literal and
// port is 1-65535. Hostnames are rejected to keep bind addresses explicit.
func validIPPort(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" || strings.ContainsAny(s, " \t") {
		return false
	}
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return false
	}
	if host != "" && net.ParseIP(host) == nil {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}
