package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	GRPCHost           string
	GRPCPort           int
	GRPCRequestTimeout time.Duration
	AdminAddr          string

	DatabaseURL       string
	DatabaseSeed      bool
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration

	TimeZone                 *time.Location
	LeadTime                 time.Duration
	PendingTTL               time.Duration
	DefaultReservationLength time.Duration
	SweepInterval            time.Duration
	ResyncInterval           time.Duration

	ShutdownTimeout time.Duration
	LogLevel        string
}

func (c Config) GRPCAddr() string {
	return net.JoinHostPort(c.GRPCHost, strconv.Itoa(c.GRPCPort))
}

// Load reads configuration from the environment. Values in an optional .env
// file fill in anything the environment does not already set.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("SCHEDULA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)
	v.SetDefault("grpc.addr", "")
	v.SetDefault("grpc.request_timeout", "10s")
	v.SetDefault("admin.addr", ":8081")
	v.SetDefault("database.url", "schedula.db")
	v.SetDefault("database.seed", true)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")
	v.SetDefault("schedule.time_zone", "America/Los_Angeles")
	v.SetDefault("schedule.lead_time", "24h")
	v.SetDefault("schedule.pending_ttl", "30m")
	v.SetDefault("schedule.default_length", "15m")
	v.SetDefault("expiry.sweep_interval", "60s")
	v.SetDefault("notify.resync_interval", "60s")
	v.SetDefault("shutdown.timeout", "10s")
	v.SetDefault("log.level", "info")

	_ = v.BindEnv("grpc.host", "SCHEDULA_GRPC_HOST", "GRPC_HOST")
	_ = v.BindEnv("grpc.port", "SCHEDULA_GRPC_PORT", "GRPC_PORT", "PORT")
	_ = v.BindEnv("grpc.addr", "SCHEDULA_GRPC_ADDR", "GRPC_ADDR")
	_ = v.BindEnv("grpc.request_timeout", "SCHEDULA_GRPC_REQUEST_TIMEOUT")
	_ = v.BindEnv("admin.addr", "SCHEDULA_ADMIN_ADDR", "ADMIN_ADDR")
	_ = v.BindEnv("database.url", "SCHEDULA_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("database.seed", "SCHEDULA_DATABASE_SEED")
	_ = v.BindEnv("database.max_open_conns", "SCHEDULA_DATABASE_MAX_OPEN_CONNS")
	_ = v.BindEnv("database.max_idle_conns", "SCHEDULA_DATABASE_MAX_IDLE_CONNS")
	_ = v.BindEnv("database.conn_max_lifetime", "SCHEDULA_DATABASE_CONN_MAX_LIFETIME")
	_ = v.BindEnv("database.conn_max_idle_time", "SCHEDULA_DATABASE_CONN_MAX_IDLE_TIME")
	_ = v.BindEnv("schedule.time_zone", "SCHEDULA_SCHEDULE_TIME_ZONE", "TZ")
	_ = v.BindEnv("schedule.lead_time", "SCHEDULA_SCHEDULE_LEAD_TIME")
	_ = v.BindEnv("schedule.pending_ttl", "SCHEDULA_SCHEDULE_PENDING_TTL")
	_ = v.BindEnv("schedule.default_length", "SCHEDULA_SCHEDULE_DEFAULT_LENGTH")
	_ = v.BindEnv("expiry.sweep_interval", "SCHEDULA_EXPIRY_SWEEP_INTERVAL")
	_ = v.BindEnv("notify.resync_interval", "SCHEDULA_NOTIFY_RESYNC_INTERVAL")
	_ = v.BindEnv("shutdown.timeout", "SCHEDULA_SHUTDOWN_TIMEOUT", "SHUTDOWN_TIMEOUT")
	_ = v.BindEnv("log.level", "SCHEDULA_LOG_LEVEL", "LOG_LEVEL")

	var cfg Config
	for key, dst := range map[string]*time.Duration{
		"grpc.request_timeout":        &cfg.GRPCRequestTimeout,
		"database.conn_max_lifetime":  &cfg.DBConnMaxLifetime,
		"database.conn_max_idle_time": &cfg.DBConnMaxIdleTime,
		"schedule.lead_time":          &cfg.LeadTime,
		"schedule.pending_ttl":        &cfg.PendingTTL,
		"schedule.default_length":     &cfg.DefaultReservationLength,
		"expiry.sweep_interval":       &cfg.SweepInterval,
		"notify.resync_interval":      &cfg.ResyncInterval,
		"shutdown.timeout":            &cfg.ShutdownTimeout,
	} {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}

	if cfg.PendingTTL <= 0 {
		return Config{}, errors.New("schedule.pending_ttl must be positive")
	}
	if cfg.DefaultReservationLength <= 0 {
		return Config{}, errors.New("schedule.default_length must be positive")
	}

	loc, err := time.LoadLocation(strings.TrimSpace(v.GetString("schedule.time_zone")))
	if err != nil {
		return Config{}, fmt.Errorf("schedule.time_zone: %w", err)
	}
	cfg.TimeZone = loc

	if addr := strings.TrimSpace(v.GetString("grpc.addr")); addr != "" {
		host, portStr, err := net.SplitHostPort(addr)
		if err == nil {
			if host != "" {
				v.Set("grpc.host", host)
			}
			if port, err := strconv.Atoi(portStr); err == nil {
				v.Set("grpc.port", port)
			}
		}
	}

	cfg.GRPCHost = strings.TrimSpace(v.GetString("grpc.host"))
	cfg.GRPCPort = v.GetInt("grpc.port")
	cfg.AdminAddr = strings.TrimSpace(v.GetString("admin.addr"))
	cfg.DatabaseURL = v.GetString("database.url")
	cfg.DatabaseSeed = v.GetBool("database.seed")
	cfg.DBMaxOpenConns = v.GetInt("database.max_open_conns")
	cfg.DBMaxIdleConns = v.GetInt("database.max_idle_conns")
	cfg.LogLevel = v.GetString("log.level")

	return cfg, nil
}
