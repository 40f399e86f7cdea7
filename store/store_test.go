package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"idlearena/game"
)

// StoreSuite 对所有后端跑同一组行为用例
type StoreSuite struct {
	suite.Suite
	open  func(t *testing.T) Store
	store Store
	ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	s.store = s.open(s.T())
	s.ctx = context.Background()
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

func sampleAccount(name string) *Account {
	acc := NewAccount(name, "$2a$10$hash", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	acc.Gold = 42
	acc.Progress = game.Progress{Level: 3, XP: 17, SkillPoints: 2}
	acc.Inventory = []game.Item{{ID: "it_1", Key: "wood", Name: "Wood", Category: game.Material, Rarity: game.Common}}
	return acc
}

func (s *StoreSuite) TestCreateAndLoad() {
	s.Require().NoError(s.store.Create(s.ctx, sampleAccount("alice")))

	got, err := s.store.Load(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("alice", got.Username)
	s.Equal(42, got.Gold)
	s.Equal(3, got.Level)
	s.Equal(2, got.SkillPoints)
	s.Equal(game.DefaultStats(), got.Stats)
	s.Require().Len(got.Inventory, 1)
	s.Equal("it_1", got.Inventory[0].ID)
	s.True(got.LastOnline.Equal(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)))
}

func (s *StoreSuite) TestCreateDuplicate() {
	s.Require().NoError(s.store.Create(s.ctx, sampleAccount("alice")))
	err := s.store.Create(s.ctx, sampleAccount("alice"))
	s.ErrorIs(err, ErrAccountExists)
}

func (s *StoreSuite) TestLoadMissing() {
	_, err := s.store.Load(s.ctx, "nobody")
	s.ErrorIs(err, ErrAccountNotFound)
}

func (s *StoreSuite) TestSaveOverwrites() {
	acc := sampleAccount("bob")
	s.Require().NoError(s.store.Create(s.ctx, acc))

	acc.Gold = 7
	acc.Inventory = nil
	s.Require().NoError(s.store.Save(s.ctx, acc))

	got, err := s.store.Load(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal(7, got.Gold)
	s.Empty(got.Inventory)
}

func (s *StoreSuite) TestLoadReturnsCopy() {
	s.Require().NoError(s.store.Create(s.ctx, sampleAccount("carol")))
	a, err := s.store.Load(s.ctx, "carol")
	s.Require().NoError(err)
	a.Gold = 9999
	a.Inventory[0].Key = "tampered"

	b, err := s.store.Load(s.ctx, "carol")
	s.Require().NoError(err)
	s.Equal(42, b.Gold)
	s.Equal("wood", b.Inventory[0].Key)
}

func (s *StoreSuite) TestList() {
	for _, name := range []string{"zed", "amy", "kim"} {
		s.Require().NoError(s.store.Create(s.ctx, sampleAccount(name)))
	}
	names, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"amy", "kim", "zed"}, names)
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &StoreSuite{open: func(*testing.T) Store { return NewMemory() }})
}

func TestFileStore(t *testing.T) {
	suite.Run(t, &StoreSuite{open: func(t *testing.T) Store {
		f, err := OpenFile(filepath.Join(t.TempDir(), "accounts.json"))
		require.NoError(t, err)
		return f
	}})
}

func TestRedisStore(t *testing.T) {
	suite.Run(t, &StoreSuite{open: func(t *testing.T) Store {
		mini := miniredis.RunT(t)
		return NewRedisWithClient(redis.NewClient(&redis.Options{Addr: mini.Addr()}))
	}})
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("IDLEARENA_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("IDLEARENA_TEST_PG_DSN not set")
	}
	suite.Run(t, &StoreSuite{open: func(t *testing.T) Store {
		p, err := OpenPostgres(dsn)
		require.NoError(t, err)
		_, err = p.db.Exec(`TRUNCATE accounts`)
		require.NoError(t, err)
		return p
	}})
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	f, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, f.Create(context.Background(), sampleAccount("alice")))

	reopened, err := OpenFile(path)
	require.NoError(t, err)
	got, err := reopened.Load(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, 42, got.Gold)
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := OpenFile(path)
	require.Error(t, err)
}

func TestRedisStoreKeyLayout(t *testing.T) {
	mini := miniredis.RunT(t)
	r := NewRedisWithClient(redis.NewClient(&redis.Options{Addr: mini.Addr()}))
	require.NoError(t, r.Create(context.Background(), sampleAccount("alice")))
	require.True(t, mini.Exists("idlearena:account:alice"))
	require.Equal(t, time.Duration(0), mini.TTL("idlearena:account:alice"))
}

func TestOpenUnknownKind(t *testing.T) {
	_, err := Open(Config{Kind: "etcd"})
	require.Error(t, err)

	s, err := Open(Config{Kind: KindMemory})
	require.NoError(t, err)
	require.IsType(t, &Memory{}, s)
}
