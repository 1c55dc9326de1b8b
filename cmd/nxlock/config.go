package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/soroosh-tanzadeh/nxlock/contracts"
	"github.com/soroosh-tanzadeh/nxlock/internal/locker"
	"github.com/soroosh-tanzadeh/nxlock/lock"
	"github.com/soroosh-tanzadeh/nxlock/redisstore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	backendRedis   = "redis"
	backendScoped  = "scoped"
	backendRedsync = "redsync"
)

type settings struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Backend       string
	KeyPrefix     string
	TTL           time.Duration
	RetryDelay    time.Duration
	AbortAfter    time.Duration
	LogLevel      string
	Trace         bool
}

// initConfig loads .env files and maps NXLOCK_* variables onto flags.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("nxlock")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func setupFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("redis-addr", "localhost:6379", "redis address")
	flags.String("redis-password", "", "redis password")
	flags.Int("redis-db", 0, "redis database")
	flags.String("backend", backendRedis, "store backend (redis, scoped, redsync)")
	flags.String("key-prefix", lock.DefaultKeyPrefix, "prefix prepended to every lock key")
	flags.Duration("ttl", lock.DefaultTTL, "lock expiry, 0 disables it")
	flags.Duration("retry-delay", lock.DefaultRetryDelay, "pause between attempts")
	flags.Duration("abort-after", 0, "give up after this long, 0 waits forever")
	flags.String("log-level", "info", "log level")
	flags.Bool("trace", false, "print acquisition spans to stdout")
}

func bindFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

func loadSettings() settings {
	return settings{
		RedisAddr:     viper.GetString("redis-addr"),
		RedisPassword: viper.GetString("redis-password"),
		RedisDB:       viper.GetInt("redis-db"),
		Backend:       viper.GetString("backend"),
		KeyPrefix:     viper.GetString("key-prefix"),
		TTL:           viper.GetDuration("ttl"),
		RetryDelay:    viper.GetDuration("retry-delay"),
		AbortAfter:    viper.GetDuration("abort-after"),
		LogLevel:      viper.GetString("log-level"),
		Trace:         viper.GetBool("trace"),
	}
}

func (s settings) redisOptions() *redis.Options {
	return &redis.Options{
		Addr:     s.RedisAddr,
		Password: s.RedisPassword,
		DB:       s.RedisDB,
	}
}

func (s settings) lockOptions() []lock.Option {
	options := []lock.Option{
		lock.WithKeyPrefix(s.KeyPrefix),
		lock.WithTTL(s.TTL),
		lock.WithRetryDelay(s.RetryDelay),
		lock.WithAbortAfter(s.AbortAfter),
	}
	if s.Trace {
		options = append(options, lock.WithTracing())
	}
	return options
}

// newStore builds the configured backend. The returned function closes the
// client the store uses, if any.
func newStore(s settings) (contracts.OwnedStore, func() error, error) {
	switch s.Backend {
	case backendRedis:
		client := redis.NewClient(s.redisOptions())
		return redisstore.New(client), client.Close, nil
	case backendScoped:
		return redisstore.NewScoped(s.redisOptions()), func() error { return nil }, nil
	case backendRedsync:
		client := redis.NewClient(s.redisOptions())
		return locker.NewRedsyncStore(client), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", s.Backend)
	}
}

func setupLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	return nil
}

func setupTracing(enabled bool) (func(context.Context) error, error) {
	if !enabled {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
