package server

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"idlearena/game"
	"idlearena/store"
)

// recorder 记录发给某个会话的全部消息
type recorder struct {
	mu     sync.Mutex
	msgs   [][]byte
	closed bool
}

func (r *recorder) Enqueue(b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, b)
}

func (r *recorder) EnqueueState(b []byte) { r.Enqueue(b) }

func (r *recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = nil
}

// of 指定类型的消息（按到达顺序）
func (r *recorder) of(typ string) []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []map[string]any
	for _, b := range r.msgs {
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			continue
		}
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (r *recorder) last(t *testing.T, typ string) map[string]any {
	t.Helper()
	msgs := r.of(typ)
	require.NotEmpty(t, msgs, "no %q message received", typ)
	return msgs[len(msgs)-1]
}

type fixedRand struct {
	f float64
	n int
}

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) IntN(n int) int  { return r.n % n }

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testRoom struct {
	*Room
	clock   *fakeClock
	persist *persister
	store   *store.Memory
}

// newTestRoom 空世界（不刷初始怪物），事件循环方法由测试协程直接调用
func newTestRoom(t *testing.T, rng game.Rand) *testRoom {
	t.Helper()
	if rng == nil {
		rng = fixedRand{f: 0.99}
	}
	clock := newFakeClock()
	st := store.NewMemory()
	metrics := &GameMetrics{}
	p := newPersister(st, time.Second, metrics)
	r := NewRoom(RoomConfig{
		TickInterval:       140 * time.Millisecond,
		SaveInterval:       8 * time.Second,
		BossRespawnDelay:   30 * time.Second,
		PvPGoldLossPercent: 10,
	}, RoomDeps{Saver: p, Metrics: metrics, Rand: rng, Now: clock.Now})
	return &testRoom{Room: r, clock: clock, persist: p, store: st}
}

// login 直接在事件循环方法上完成连接与入场
func (tr *testRoom) login(t *testing.T, name string, edit func(acc *store.Account)) (*Session, *recorder, *Player) {
	t.Helper()
	rec := &recorder{}
	s := NewSession("s_"+name, rec)
	tr.connect(s)
	acc := store.NewAccount(name, "hash", tr.now())
	if edit != nil {
		edit(acc)
	}
	tr.join(s, acc, "token-"+name)
	require.True(t, s.authenticated(), "%s did not join", name)
	p := tr.world.Player(s.playerID)
	require.NotNil(t, p)
	return s, rec, p
}

func (tr *testRoom) addMonster(zone game.Zone, boss bool, x, y float64) *Monster {
	m := newMonster(newID("m"), zone, boss, x, y)
	tr.world.AddMonster(m)
	return m
}

func item(t *testing.T, key string) game.Item {
	t.Helper()
	it, err := game.NewItem(newID("it"), key, game.Common)
	require.NoError(t, err)
	return it
}

func ptr[T any](v T) *T { return &v }
