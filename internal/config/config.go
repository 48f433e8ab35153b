package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Env  string
	Port string

	RedisURL  string
	RedisPass string
	RedisDB   int

	JWTSecret string
	JWTExpiry time.Duration

	ChainMock    bool
	ChainRPC     string
	PoolWallet   string
	PromPort     string
	Payouts      Payouts    `yaml:"payouts"`
	RateLimits   RateLimits `yaml:"rate_limits"`
	Signers      []string   `yaml:"signers"`
	InitialPool  float64    `yaml:"initial_pool_balance"`
	ReserveRatio float64    `yaml:"reserve_ratio"`
}

// Payouts holds the operational thresholds consulted by the payout
// orchestrator. Values are denominated in the pool currency.
type Payouts struct {
	MinPayout          float64       `yaml:"min_payout"`
	MaxPayout          float64       `yaml:"max_payout"`
	GasBuffer          float64       `yaml:"gas_buffer"`
	MultisigThreshold  float64       `yaml:"multisig_threshold"`
	RequiredSignatures int           `yaml:"required_signatures"`
	Timelock           time.Duration `yaml:"timelock"`
	MaxDailyWithdrawal float64       `yaml:"max_daily_withdrawal"`
	MaxSingleTx        float64       `yaml:"max_single_tx"`
	LockTTL            time.Duration `yaml:"lock_ttl"`
	ConfirmTimeout     time.Duration `yaml:"confirm_timeout"`
	SubmitAttempts     int           `yaml:"submit_attempts"`
}

type RateLimits struct {
	SensitiveLimit  int           `yaml:"sensitive_limit"`
	SensitiveWindow time.Duration `yaml:"sensitive_window"`
	GeneralLimit    int           `yaml:"general_limit"`
	GeneralWindow   time.Duration `yaml:"general_window"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:       getEnv("APP_ENV", "development"),
		Port:      getEnv("PORT", "8080"),
		RedisURL:  getEnv("REDIS_URL", "localhost:6379"),
		RedisPass: getEnv("REDIS_PASSWORD", ""),
		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTExpiry: 24 * time.Hour,
		ChainRPC:  getEnv("CHAIN_RPC", "localhost:8545"),

		PoolWallet: getEnv("POOL_WALLET", ""),
		PromPort:   getEnv("PROM_PORT", ":2112"),

		InitialPool:  10000,
		ReserveRatio: 0.2,
		Payouts: Payouts{
			MinPayout:          0.0001,
			MaxPayout:          10000,
			GasBuffer:          1,
			MultisigThreshold:  1000,
			RequiredSignatures: 2,
			Timelock:           time.Hour,
			MaxDailyWithdrawal: 50000,
			MaxSingleTx:        5000,
			LockTTL:            30 * time.Second,
			ConfirmTimeout:     5 * time.Minute,
			SubmitAttempts:     4,
		},
		RateLimits: RateLimits{
			SensitiveLimit:  10,
			SensitiveWindow: time.Minute,
			GeneralLimit:    60,
			GeneralWindow:   time.Minute,
		},
	}

	if db := getEnv("REDIS_DB", ""); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil {
			return nil, errors.Wrap(err, "invalid REDIS_DB")
		}
		cfg.RedisDB = n
	}
	if mock := getEnv("CHAIN_MOCK", ""); mock != "" {
		cfg.ChainMock = mock == "true" || mock == "1"
	}

	// Optional yaml override for operational thresholds.
	if path := getEnv("CONFIG_FILE", ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed reading config file %s", path)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrap(err, "failed parsing config file")
		}
	}

	if cfg.Env == "production" && cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required in production")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
