package server

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"idlearena/store"
)

const (
	tokenIssuer      = "idlearena"
	randomSecretSize = 32
)

// Accounts 注册、密码校验与会话恢复 token；在连接协程中调用，不进入事件循环
type Accounts struct {
	store  store.Store
	loader accountLoader
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

// accountLoader 读取账号（persister 会先查未落盘的快照）
type accountLoader interface {
	Load(ctx context.Context, username string) (*store.Account, error)
}

// NewAccounts 创建账号服务
func NewAccounts(st store.Store, loader accountLoader, cfg Config, now func() time.Time) *Accounts {
	if loader == nil {
		loader = st
	}
	if now == nil {
		now = time.Now
	}
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		secret = randomSecret()
		Log.Warn("IDLEARENA_JWT_SECRET not set, using a random per-process secret; tokens will not survive a restart")
	}
	return &Accounts{
		store:  st,
		loader: loader,
		secret: secret,
		ttl:    cfg.TokenTTL,
		cost:   cost,
		now:    now,
	}
}

func randomSecret() []byte {
	b := make([]byte, randomSecretSize)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("read random secret: %v", err))
	}
	return b
}

// Register 哈希密码并创建默认账号
func (a *Accounts) Register(ctx context.Context, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	acc := store.NewAccount(username, string(hash), a.now())
	if err := a.store.Create(ctx, acc); err != nil {
		if errors.Is(err, store.ErrAccountExists) {
			return ErrDuplicateAccount
		}
		return err
	}
	Log.Infow("account registered", "username", username)
	return nil
}

// Authenticate 账号不存在与密码错误一律返回 ErrInvalidCredentials
func (a *Accounts) Authenticate(ctx context.Context, username, password string) (*store.Account, error) {
	acc, err := a.loader.Load(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return acc, nil
}

// IssueToken 签发会话恢复 token（HS256，subject 为用户名）
func (a *Accounts) IssueToken(username string) (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Resume 校验 token 并读取对应账号
func (a *Accounts) Resume(ctx context.Context, token string) (*store.Account, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || claims.Subject == "" {
		return nil, ErrInvalidCredentials
	}
	acc, err := a.loader.Load(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return acc, nil
}
