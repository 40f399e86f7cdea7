package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// 所有账号 key 的前缀
const keyPrefix = "idlearena"

func accountKey(username string) string {
	return fmt.Sprintf("%s:account:%s", keyPrefix, username)
}

// RedisConfig Redis 连接参数
type RedisConfig struct {
	// URL 形如 redis://localhost:6379/0
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
}

// DefaultRedisConfig 默认连接参数
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		URL:          "redis://localhost:6379/0",
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
	}
}

// Redis 每个账号一个 JSON 字符串 key，无过期时间
type Redis struct {
	client *redis.Client
}

// OpenRedis 解析 URL 并 PING 验证连接
func OpenRedis(cfg RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &Redis{client: client}, nil
}

// NewRedisWithClient 使用已有客户端（测试用）
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

var _ Store = (*Redis)(nil)

func (r *Redis) Create(ctx context.Context, acc *Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, accountKey(acc.Username), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create account %s: %w", acc.Username, err)
	}
	if !ok {
		return ErrAccountExists
	}
	return nil
}

func (r *Redis) Load(ctx context.Context, username string) (*Account, error) {
	data, err := r.client.Get(ctx, accountKey(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("load account %s: %w", username, err)
	}
	var acc Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("decode account %s: %w", username, err)
	}
	return &acc, nil
}

func (r *Redis) Save(ctx context.Context, acc *Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, accountKey(acc.Username), data, 0).Err(); err != nil {
		return fmt.Errorf("save account %s: %w", acc.Username, err)
	}
	return nil
}

func (r *Redis) List(ctx context.Context) ([]string, error) {
	prefix := accountKey("")
	var names []string
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		names = append(names, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan accounts: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

func (r *Redis) Close() error { return r.client.Close() }
