package store

import "fmt"

// 存储后端类型
const (
	KindMemory   = "memory"
	KindFile     = "file"
	KindRedis    = "redis"
	KindPostgres = "postgres"
)

// Config 选择并配置存储后端
type Config struct {
	Kind        string
	FilePath    string
	Redis       RedisConfig
	PostgresDSN string
}

// DefaultConfig 默认使用本地 accounts.json
func DefaultConfig() Config {
	return Config{
		Kind:     KindFile,
		FilePath: "accounts.json",
		Redis:    DefaultRedisConfig(),
	}
}

// Open 按 Kind 打开后端
func Open(cfg Config) (Store, error) {
	switch cfg.Kind {
	case KindMemory:
		return NewMemory(), nil
	case KindFile, "":
		return OpenFile(cfg.FilePath)
	case KindRedis:
		return OpenRedis(cfg.Redis)
	case KindPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres store requires a DSN")
		}
		return OpenPostgres(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}
}
