package server

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"idlearena/store"
)

// Config 服务端全部配置；默认值 -> .env -> 环境变量 -> 命令行参数 逐层覆盖
type Config struct {
	Addr      string
	StaticDir string
	Log       LogConfig

	TickInterval time.Duration
	SaveInterval time.Duration
	SaveTimeout  time.Duration

	Store store.Config

	// 为空时每个进程随机生成，重启后旧 token 失效
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int

	// 每个连接的消息速率上限（条/秒）与突发量
	RateLimit float64
	RateBurst int

	// 固定的死亡惩罚与刷怪策略
	PvPGoldLossPercent int
	BossRespawnDelay   time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Addr:               ":10000",
		StaticDir:          "public",
		Log:                LogConfig{FilePath: "app.log", Level: "info"},
		TickInterval:       140 * time.Millisecond,
		SaveInterval:       8 * time.Second,
		SaveTimeout:        5 * time.Second,
		Store:              store.DefaultConfig(),
		TokenTTL:           24 * time.Hour,
		BcryptCost:         10,
		RateLimit:          30,
		RateBurst:          60,
		PvPGoldLossPercent: 10,
		BossRespawnDelay:   30 * time.Second,
	}
}

// LoadConfig 读取可选的 .env 文件与 IDLEARENA_* 环境变量
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	cfg := DefaultConfig()
	cfg.Addr = getEnv("IDLEARENA_ADDR", cfg.Addr)
	cfg.StaticDir = getEnv("IDLEARENA_STATIC_DIR", cfg.StaticDir)
	cfg.Log.FilePath = getEnv("IDLEARENA_LOG_FILE", cfg.Log.FilePath)
	cfg.Log.Level = getEnv("IDLEARENA_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Stderr = getEnvAsBool("IDLEARENA_LOG_STDERR", cfg.Log.Stderr)
	cfg.TickInterval = getEnvAsDuration("IDLEARENA_TICK_INTERVAL", cfg.TickInterval)
	cfg.SaveInterval = getEnvAsDuration("IDLEARENA_SAVE_INTERVAL", cfg.SaveInterval)
	cfg.Store.Kind = getEnv("IDLEARENA_STORE", cfg.Store.Kind)
	cfg.Store.FilePath = getEnv("IDLEARENA_ACCOUNTS_FILE", cfg.Store.FilePath)
	cfg.Store.Redis.URL = getEnv("IDLEARENA_REDIS_URL", cfg.Store.Redis.URL)
	cfg.Store.PostgresDSN = getEnv("IDLEARENA_POSTGRES_DSN", cfg.Store.PostgresDSN)
	cfg.JWTSecret = getEnv("IDLEARENA_JWT_SECRET", cfg.JWTSecret)
	cfg.TokenTTL = getEnvAsDuration("IDLEARENA_TOKEN_TTL", cfg.TokenTTL)
	cfg.BcryptCost = getEnvAsInt("IDLEARENA_BCRYPT_COST", cfg.BcryptCost)
	cfg.RateLimit = getEnvAsFloat("IDLEARENA_RATE_LIMIT", cfg.RateLimit)
	cfg.RateBurst = getEnvAsInt("IDLEARENA_RATE_BURST", cfg.RateBurst)
	cfg.PvPGoldLossPercent = getEnvAsInt("IDLEARENA_PVP_GOLD_LOSS_PERCENT", cfg.PvPGoldLossPercent)
	cfg.BossRespawnDelay = getEnvAsDuration("IDLEARENA_BOSS_RESPAWN_DELAY", cfg.BossRespawnDelay)
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		Log.Warnf("invalid integer for %s: %q, using default %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		Log.Warnf("invalid number for %s: %q, using default %v", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		Log.Warnf("invalid bool for %s: %q, using default %v", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		Log.Warnf("invalid duration for %s: %q, using default %s", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
