package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idlearena/store"
)

// flakyStore 在 failing 为 true 时拒绝写入
type flakyStore struct {
	*store.Memory
	mu      sync.Mutex
	failing bool
}

func (f *flakyStore) setFailing(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = v
}

func (f *flakyStore) Save(ctx context.Context, acc *store.Account) error {
	f.mu.Lock()
	failing := f.failing
	f.mu.Unlock()
	if failing {
		return errors.New("disk on fire")
	}
	return f.Memory.Save(ctx, acc)
}

func TestPersisterRetriesFailedSaves(t *testing.T) {
	st := &flakyStore{Memory: store.NewMemory(), failing: true}
	metrics := &GameMetrics{}
	p := newPersister(st, time.Second, metrics)
	ctx := context.Background()

	acc := store.NewAccount("alice", "hash", time.Now())
	acc.Gold = 5
	p.Enqueue(acc)
	p.flush(ctx)

	assert.Equal(t, 1, p.Pending())
	assert.EqualValues(t, 1, metrics.SavesFailed)
	_, err := st.Load(ctx, "alice")
	assert.ErrorIs(t, err, store.ErrAccountNotFound)

	// 存储不可用期间登录仍读到最新快照
	got, err := p.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Gold)

	st.setFailing(false)
	p.flush(ctx)
	assert.Equal(t, 0, p.Pending())
	assert.EqualValues(t, 1, metrics.SavesOK)
	saved, err := st.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 5, saved.Gold)
}

func TestPersisterKeepsNewerSnapshot(t *testing.T) {
	p := newPersister(store.NewMemory(), time.Second, &GameMetrics{})
	first := store.NewAccount("alice", "hash", time.Now())
	p.Enqueue(first)
	second := first.Clone()
	second.Gold = 99
	p.Enqueue(second)

	latest, ok := p.Latest("alice")
	require.True(t, ok)
	assert.Equal(t, 99, latest.Gold)
	assert.Equal(t, 1, p.Pending())

	// 返回的是副本
	latest.Gold = 0
	again, _ := p.Latest("alice")
	assert.Equal(t, 99, again.Gold)
}

func TestPersisterRunFlushesOnStop(t *testing.T) {
	st := store.NewMemory()
	p := newPersister(st, time.Second, &GameMetrics{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()

	p.Enqueue(store.NewAccount("bob", "hash", time.Now()))
	cancel()
	<-done

	assert.Equal(t, 0, p.Pending())
	_, err := st.Load(context.Background(), "bob")
	assert.NoError(t, err)
}
