package store

import (
	"context"
	"errors"
	"time"

	"idlearena/game"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
)

// Account 持久化的账号记录：凭据哈希 + 完整的玩法快照
type Account struct {
	Username     string      `json:"username"`
	PasswordHash string      `json:"password"`
	Class        string      `json:"class"`
	Stats        game.Stats  `json:"stats"`
	Inventory    []game.Item `json:"inventory"`
	game.Progress
	Gold       int       `json:"gold"`
	LastOnline time.Time `json:"lastOnline"`
}

// NewAccount 注册时的默认账号
func NewAccount(username, passwordHash string, now time.Time) *Account {
	return &Account{
		Username:     username,
		PasswordHash: passwordHash,
		Class:        game.DefaultClass,
		Stats:        game.DefaultStats(),
		Inventory:    []game.Item{},
		Progress:     game.NewProgress(),
		LastOnline:   now,
	}
}

// Clone 深拷贝，背包切片不共享
func (a *Account) Clone() *Account {
	c := *a
	c.Inventory = append([]game.Item{}, a.Inventory...)
	return &c
}

// Store 账号存储：按用户名读写，不删除
type Store interface {
	// Create 新建账号；用户名已存在返回 ErrAccountExists
	Create(ctx context.Context, acc *Account) error
	// Load 读取账号；不存在返回 ErrAccountNotFound
	Load(ctx context.Context, username string) (*Account, error)
	// Save 覆盖写入
	Save(ctx context.Context, acc *Account) error
	// List 全部用户名（有序）
	List(ctx context.Context) ([]string, error)
	Close() error
}
