package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SCHEDULA_SCHEDULE_TIME_ZONE", "UTC")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if got := cfg.GRPCAddr(); got != "0.0.0.0:50051" {
		t.Fatalf("GRPCAddr = %q, want %q", got, "0.0.0.0:50051")
	}
	if cfg.DatabaseURL != "schedula.db" {
		t.Fatalf("DatabaseURL = %q, want %q", cfg.DatabaseURL, "schedula.db")
	}
	if !cfg.DatabaseSeed {
		t.Fatalf("DatabaseSeed = false, want true")
	}
	if cfg.LeadTime != 24*time.Hour {
		t.Fatalf("LeadTime = %v, want %v", cfg.LeadTime, 24*time.Hour)
	}
	if cfg.PendingTTL != 30*time.Minute {
		t.Fatalf("PendingTTL = %v, want %v", cfg.PendingTTL, 30*time.Minute)
	}
	if cfg.DefaultReservationLength != 15*time.Minute {
		t.Fatalf("DefaultReservationLength = %v, want %v", cfg.DefaultReservationLength, 15*time.Minute)
	}
	if cfg.SweepInterval != time.Minute || cfg.ResyncInterval != time.Minute {
		t.Fatalf("SweepInterval = %v, ResyncInterval = %v, want 1m", cfg.SweepInterval, cfg.ResyncInterval)
	}
	if cfg.TimeZone.String() != "UTC" {
		t.Fatalf("TimeZone = %v, want UTC", cfg.TimeZone)
	}
}

func TestLoad_GRPCAddrOverridesHostAndPort(t *testing.T) {
	t.Setenv("SCHEDULA_SCHEDULE_TIME_ZONE", "UTC")
	t.Setenv("SCHEDULA_GRPC_ADDR", "127.0.0.1:6000")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got := cfg.GRPCAddr(); got != "127.0.0.1:6000" {
		t.Fatalf("GRPCAddr = %q, want %q", got, "127.0.0.1:6000")
	}
}

func TestLoad_EnvFileFillsUnsetValues(t *testing.T) {
	t.Setenv("SCHEDULA_SCHEDULE_TIME_ZONE", "UTC")
	t.Setenv("SCHEDULA_SCHEDULE_PENDING_TTL", "45m")

	path := filepath.Join(t.TempDir(), ".env")
	body := "SCHEDULA_SCHEDULE_PENDING_TTL=5m\nSCHEDULA_EXPIRY_SWEEP_INTERVAL=15s\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Unsetenv("SCHEDULA_EXPIRY_SWEEP_INTERVAL")
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.PendingTTL != 45*time.Minute {
		t.Fatalf("PendingTTL = %v, want %v", cfg.PendingTTL, 45*time.Minute)
	}
	if cfg.SweepInterval != 15*time.Second {
		t.Fatalf("SweepInterval = %v, want %v", cfg.SweepInterval, 15*time.Second)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"SCHEDULA_SCHEDULE_LEAD_TIME":   "a day",
		"SCHEDULA_SCHEDULE_PENDING_TTL": "0s",
		"SCHEDULA_SCHEDULE_TIME_ZONE":   "Mars/Olympus_Mons",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("SCHEDULA_SCHEDULE_TIME_ZONE", "UTC")
			t.Setenv(key, value)
			if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
				t.Fatalf("Load error = nil, want error for %s=%q", key, value)
			}
		})
	}
}
