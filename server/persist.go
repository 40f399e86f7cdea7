package server

import (
	"context"
	"sync"
	"time"

	"idlearena/store"
)

// persister 在独立协程里把账号快照写入存储，不阻塞事件循环。
// 写失败的快照留在 pending 中，下一次定时保存时重试。
type persister struct {
	store   store.Store
	timeout time.Duration
	metrics *GameMetrics

	mu      sync.Mutex
	pending map[string]*store.Account
	wake    chan struct{}
}

func newPersister(st store.Store, timeout time.Duration, metrics *GameMetrics) *persister {
	return &persister{
		store:   st,
		timeout: timeout,
		metrics: metrics,
		pending: make(map[string]*store.Account),
		wake:    make(chan struct{}, 1),
	}
}

// Enqueue 记录最新快照（同名覆盖旧快照）并唤醒写协程
func (p *persister) Enqueue(acc *store.Account) {
	p.mu.Lock()
	p.pending[acc.Username] = acc
	p.mu.Unlock()
	p.Wake()
}

// Wake 非阻塞唤醒写协程，重试积压的快照
func (p *persister) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Load 优先返回尚未落盘的快照，保证刚下线又立刻登录时读到最新进度
func (p *persister) Load(ctx context.Context, username string) (*store.Account, error) {
	if acc, ok := p.Latest(username); ok {
		return acc, nil
	}
	return p.store.Load(ctx, username)
}

// Latest 尚未落盘的最新快照（副本）
func (p *persister) Latest(username string) (*store.Account, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	acc, ok := p.pending[username]
	if !ok {
		return nil, false
	}
	return acc.Clone(), true
}

// Pending 积压的快照数量
func (p *persister) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Run 写协程主循环；ctx 结束时做最后一次落盘
func (p *persister) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.flush(context.Background())
			return
		case <-p.wake:
			p.flush(ctx)
		}
	}
}

// flush 写出当前积压；成功且未被更新的快照才从 pending 移除
func (p *persister) flush(ctx context.Context) {
	p.mu.Lock()
	batch := make([]*store.Account, 0, len(p.pending))
	for _, acc := range p.pending {
		batch = append(batch, acc)
	}
	p.mu.Unlock()

	for _, acc := range batch {
		wctx, cancel := context.WithTimeout(ctx, p.timeout)
		err := p.store.Save(wctx, acc)
		cancel()
		if err != nil {
			p.metrics.IncSaveFailed()
			Log.Warnw("account save failed, will retry", "username", acc.Username, "error", err)
			continue
		}
		p.metrics.IncSaved()
		p.mu.Lock()
		if p.pending[acc.Username] == acc {
			delete(p.pending, acc.Username)
		}
		p.mu.Unlock()
	}
}
