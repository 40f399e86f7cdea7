package server

import (
	"errors"
	"fmt"

	"idlearena/game"
)

// TradeState 交易生命周期
type TradeState string

const (
	TradePending   TradeState = "pending"
	TradeCompleted TradeState = "completed"
	TradeDeclined  TradeState = "declined"
	TradeAbandoned TradeState = "abandoned"
)

// Trade 双方交易：发起方报价，接受方在 accept 时给出回价
type Trade struct {
	ID     string     `json:"id"`
	FromID PlayerID   `json:"fromId"`
	ToID   PlayerID   `json:"toId"`
	Offer  Offer      `json:"offer"`
	Ask    *Offer     `json:"ask,omitempty"`
	State  TradeState `json:"state"`
}

var (
	errTradeNotFound = errors.New("trade not found")
	errNotYourTrade  = errors.New("not your trade")
	errPlayerOffline = errors.New("player offline")
)

// TradeBook 挂起中的交易；只在事件循环内使用
type TradeBook struct {
	trades map[string]*Trade
}

func NewTradeBook() *TradeBook {
	return &TradeBook{trades: make(map[string]*Trade)}
}

// verifyOffer 校验玩家确实持有报价中的物品与金币
func verifyOffer(p *Player, o Offer) error {
	if o.Gold < 0 || o.Gold > p.Gold {
		return fmt.Errorf("%w: not enough gold", ErrInvalidOffer)
	}
	seen := make(map[string]bool, len(o.ItemIDs))
	for _, id := range o.ItemIDs {
		if seen[id] {
			return fmt.Errorf("%w: duplicate item %s", ErrInvalidOffer, id)
		}
		seen[id] = true
		if game.IndexOf(p.Inventory, id) < 0 {
			return fmt.Errorf("%w: item missing", ErrInvalidOffer)
		}
	}
	return nil
}

// Request 创建挂起交易
func (b *TradeBook) Request(id string, from, to *Player, offer Offer) (*Trade, error) {
	if to == nil {
		return nil, errPlayerOffline
	}
	if from.ID == to.ID {
		return nil, fmt.Errorf("%w: cannot trade with yourself", ErrInvalidOffer)
	}
	if err := verifyOffer(from, offer); err != nil {
		return nil, err
	}
	t := &Trade{ID: id, FromID: from.ID, ToID: to.ID, Offer: offer, State: TradePending}
	b.trades[id] = t
	return t, nil
}

// Accept 接受方给出回价；双方报价在此刻重新校验，通过后一次性完成交换。
// 任何失败都会丢弃交易且不改动任何一方。drop 接收背包放不下的物品。
func (b *TradeBook) Accept(id string, by *Player, ask Offer, lookup func(PlayerID) *Player, drop func(*Player, game.Item)) (*Trade, error) {
	t := b.trades[id]
	if t == nil {
		return nil, errTradeNotFound
	}
	if t.ToID != by.ID {
		return nil, errNotYourTrade
	}
	delete(b.trades, id)

	from := lookup(t.FromID)
	if from == nil {
		t.State = TradeAbandoned
		return t, errPlayerOffline
	}
	t.Ask = &ask
	if err := verifyOffer(from, t.Offer); err != nil {
		t.State = TradeDeclined
		return t, err
	}
	if err := verifyOffer(by, ask); err != nil {
		t.State = TradeDeclined
		return t, err
	}
	swap(from, by, t.Offer, ask, drop)
	t.State = TradeCompleted
	return t, nil
}

// Decline 任一方取消交易
func (b *TradeBook) Decline(id string, by PlayerID) (*Trade, error) {
	t := b.trades[id]
	if t == nil {
		return nil, errTradeNotFound
	}
	if t.FromID != by && t.ToID != by {
		return nil, errNotYourTrade
	}
	delete(b.trades, id)
	t.State = TradeDeclined
	return t, nil
}

// Abandon 玩家断线时丢弃其参与的所有交易
func (b *TradeBook) Abandon(pid PlayerID) []*Trade {
	var out []*Trade
	for id, t := range b.trades {
		if t.FromID == pid || t.ToID == pid {
			delete(b.trades, id)
			t.State = TradeAbandoned
			out = append(out, t)
		}
	}
	return out
}

// Len 挂起交易数量
func (b *TradeBook) Len() int { return len(b.trades) }

// swap 先从双方移出报价，再交给对方；调用前双方报价必须已校验
func swap(a, b *Player, offerA, offerB Offer, drop func(*Player, game.Item)) {
	itemsA := takeItems(a, offerA.ItemIDs)
	itemsB := takeItems(b, offerB.ItemIDs)
	a.Gold -= offerA.Gold
	b.Gold -= offerB.Gold

	give := func(p *Player, items []game.Item) {
		for _, it := range items {
			if !p.addItem(it) {
				it.Equipped = false
				drop(p, it)
			}
		}
	}
	give(a, itemsB)
	give(b, itemsA)
	a.Gold += offerB.Gold
	b.Gold += offerA.Gold
}

func takeItems(p *Player, ids []string) []game.Item {
	out := make([]game.Item, 0, len(ids))
	for _, id := range ids {
		if idx := game.IndexOf(p.Inventory, id); idx >= 0 {
			out = append(out, p.removeItemAt(idx))
		}
	}
	return out
}
