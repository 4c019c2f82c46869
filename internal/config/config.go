package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Platform holds the marketplace policy knobs consumed by the core.
type Platform struct {
	BufferDays                int   `yaml:"buffer_days"`
	CooldownHours             int   `yaml:"cooldown_hours"`
	CommissionPercent         int   `yaml:"commission_percent"`
	MinAutoWithdrawCentavos   int64 `yaml:"min_auto_withdraw_centavos"`
	TeamStartDefaultThreshold int   `yaml:"team_start_default_threshold"`
	SweepBatchSize            int   `yaml:"sweep_batch_size"`
	SweepIntervalMinutes      int   `yaml:"sweep_interval_minutes"`
	AttendanceGraceHours      int   `yaml:"attendance_grace_hours"`
}

type Config struct {
	Server struct {
		Address string `yaml:"address"`
	} `yaml:"server"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"redis"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Platform Platform `yaml:"platform"`
}

// Defaults returns the platform settings used when no file or env override
// is present.
func Defaults() Platform {
	return Platform{
		BufferDays:                7,
		CooldownHours:             24,
		CommissionPercent:         10,
		MinAutoWithdrawCentavos:   50000,
		TeamStartDefaultThreshold: 100,
		SweepBatchSize:            100,
		SweepIntervalMinutes:      5,
		AttendanceGraceHours:      12,
	}
}

// Load reads the optional YAML config file and applies environment overrides.
// Environment always wins so deploys can tune without a file change.
func Load(path string) (Config, error) {
	cfg := Config{Platform: Defaults()}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	if v := os.Getenv("SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v, ok := envInt("BUFFER_DAYS"); ok {
		cfg.Platform.BufferDays = v
	}
	if v, ok := envInt("COOLDOWN_HOURS"); ok {
		cfg.Platform.CooldownHours = v
	}
	if v, ok := envInt("COMMISSION_PERCENT"); ok {
		cfg.Platform.CommissionPercent = v
	}
	if v, ok := envInt("SWEEP_BATCH_SIZE"); ok {
		cfg.Platform.SweepBatchSize = v
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = "0.0.0.0:8080"
	}
	if cfg.Platform.SweepBatchSize <= 0 {
		cfg.Platform.SweepBatchSize = Defaults().SweepBatchSize
	}
	if cfg.Platform.TeamStartDefaultThreshold <= 0 || cfg.Platform.TeamStartDefaultThreshold > 100 {
		cfg.Platform.TeamStartDefaultThreshold = Defaults().TeamStartDefaultThreshold
	}
	return cfg, nil
}

// BufferWindow is the pending-earning hold duration.
func (p Platform) BufferWindow() time.Duration {
	return time.Duration(p.BufferDays) * 24 * time.Hour
}

// Cooldown is the post-reject dispute cooldown duration.
func (p Platform) Cooldown() time.Duration {
	return time.Duration(p.CooldownHours) * time.Hour
}

// SweepInterval is the cadence of the payment buffer sweep.
func (p Platform) SweepInterval() time.Duration {
	return time.Duration(p.SweepIntervalMinutes) * time.Minute
}

// AttendanceGrace is how long after a working day ends the client may still
// contest the worker's attendance claim.
func (p Platform) AttendanceGrace() time.Duration {
	return time.Duration(p.AttendanceGraceHours) * time.Hour
}

// CommissionFor computes the platform fee on an amount.
func (p Platform) CommissionFor(amountCentavos int64) int64 {
	return amountCentavos * int64(p.CommissionPercent) / 100
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
