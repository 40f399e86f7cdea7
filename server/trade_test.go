package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idlearena/game"
	"idlearena/store"
)

func ids(items []game.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestTradeSwapIsAtomic(t *testing.T) {
	tr := newTestRoom(t, nil)
	sa, recA, alice := tr.login(t, "alice", func(acc *store.Account) { acc.Gold = 100 })
	sb, recB, bob := tr.login(t, "bob", func(acc *store.Account) { acc.Gold = 20 })
	sword, wood := item(t, "bronze_sword"), item(t, "wood")
	potion, iron := item(t, "hp_potion"), item(t, "iron_ingot")
	sword.Equipped = true
	alice.Inventory = []game.Item{sword, wood}
	alice.syncEquipment()
	bob.Inventory = []game.Item{potion, iron}

	tr.dispatch(sa, TradeRequestIntent{ToID: bob.ID, Offer: Offer{ItemIDs: []string{sword.ID}, Gold: 30}})

	resp := recA.last(t, typeTradeResponse)
	require.Equal(t, true, resp["ok"])
	req := recB.last(t, typeTradeRequest)["trade"].(map[string]any)
	tradeID := req["id"].(string)
	assert.Equal(t, string(alice.ID), req["fromId"])

	tr.dispatch(sb, TradeAcceptIntent{TradeID: tradeID, Ask: Offer{ItemIDs: []string{potion.ID}, Gold: 5}})

	assert.Equal(t, 120, alice.Gold+bob.Gold)
	assert.Equal(t, 75, alice.Gold)
	assert.Equal(t, 45, bob.Gold)
	assert.ElementsMatch(t, []string{wood.ID, potion.ID}, ids(alice.Inventory))
	assert.ElementsMatch(t, []string{iron.ID, sword.ID}, ids(bob.Inventory))
	assert.Empty(t, alice.Equipment.Weapon)
	for _, it := range bob.Inventory {
		assert.False(t, it.Equipped, "received items arrive unequipped")
	}
	assert.Equal(t, tradeID, recA.last(t, typeTradeComplete)["tradeId"])
	assert.Equal(t, tradeID, recB.last(t, typeTradeComplete)["tradeId"])
	assert.Equal(t, 0, tr.trades.Len())
}

func TestTradeRequestRejectsInvalidOffer(t *testing.T) {
	tr := newTestRoom(t, nil)
	sa, recA, alice := tr.login(t, "alice", func(acc *store.Account) { acc.Gold = 10 })
	_, recB, bob := tr.login(t, "bob", nil)
	wood := item(t, "wood")
	alice.Inventory = []game.Item{wood}

	cases := []Offer{
		{Gold: 11},
		{ItemIDs: []string{"it_missing"}},
		{ItemIDs: []string{wood.ID, wood.ID}},
	}
	for _, offer := range cases {
		recA.reset()
		tr.dispatch(sa, TradeRequestIntent{ToID: bob.ID, Offer: offer})
		resp := recA.last(t, typeTradeResponse)
		assert.Equal(t, false, resp["ok"], "offer %+v", offer)
		assert.Equal(t, "InvalidOffer", resp["code"], "offer %+v", offer)
	}

	recA.reset()
	tr.dispatch(sa, TradeRequestIntent{ToID: "p_offline", Offer: Offer{}})
	resp := recA.last(t, typeTradeResponse)
	assert.Equal(t, "player offline", resp["message"])
	assert.Equal(t, "TargetNotFound", resp["code"])

	tr.dispatch(sa, TradeRequestIntent{ToID: alice.ID, Offer: Offer{}})
	assert.Empty(t, recB.of(typeTradeRequest))
	assert.Equal(t, 0, tr.trades.Len())
}

func TestTradeAcceptReverifiesOffers(t *testing.T) {
	tr := newTestRoom(t, nil)
	sa, recA, alice := tr.login(t, "alice", nil)
	sb, recB, bob := tr.login(t, "bob", func(acc *store.Account) { acc.Gold = 50 })
	potion := item(t, "hp_potion")
	alice.Inventory = []game.Item{potion}
	alice.Stats.HP = 1

	tr.dispatch(sa, TradeRequestIntent{ToID: bob.ID, Offer: Offer{ItemIDs: []string{potion.ID}}})
	tradeID := recB.last(t, typeTradeRequest)["trade"].(map[string]any)["id"].(string)

	// 发起方在接受之前用掉了报价中的物品
	tr.dispatch(sa, UseItemIntent{ItemID: potion.ID})
	tr.dispatch(sb, TradeAcceptIntent{TradeID: tradeID, Ask: Offer{Gold: 50}})

	assert.Equal(t, false, recB.last(t, typeTradeResponse)["ok"])
	assert.Equal(t, tradeID, recA.last(t, typeTradeDeclined)["tradeId"])
	assert.Equal(t, 50, bob.Gold)
	assert.Equal(t, 0, alice.Gold)
	assert.Empty(t, alice.Inventory)
	assert.Empty(t, bob.Inventory)
	assert.Equal(t, 0, tr.trades.Len())
}

func TestTradeAcceptOnlyByCounterparty(t *testing.T) {
	tr := newTestRoom(t, nil)
	sa, recA, _ := tr.login(t, "alice", nil)
	_, recB, bob := tr.login(t, "bob", nil)

	tr.dispatch(sa, TradeRequestIntent{ToID: bob.ID, Offer: Offer{}})
	tradeID := recB.last(t, typeTradeRequest)["trade"].(map[string]any)["id"].(string)

	tr.dispatch(sa, TradeAcceptIntent{TradeID: tradeID})
	resp := recA.last(t, typeTradeResponse)
	assert.Equal(t, "not your trade", resp["message"])
	assert.Equal(t, "InvalidOffer", resp["code"])
	assert.Equal(t, 1, tr.trades.Len())
}

func TestTradeOverflowGoesToGround(t *testing.T) {
	tr := newTestRoom(t, nil)
	sa, _, alice := tr.login(t, "alice", nil)
	sb, recB, bob := tr.login(t, "bob", nil)
	gift := item(t, "leather_armor")
	alice.Inventory = []game.Item{gift}
	for i := 0; i < game.InventoryCapacity; i++ {
		bob.Inventory = append(bob.Inventory, item(t, "wood"))
	}

	tr.dispatch(sa, TradeRequestIntent{ToID: bob.ID, Offer: Offer{ItemIDs: []string{gift.ID}}})
	tradeID := recB.last(t, typeTradeRequest)["trade"].(map[string]any)["id"].(string)
	tr.dispatch(sb, TradeAcceptIntent{TradeID: tradeID})

	assert.Empty(t, alice.Inventory)
	assert.Len(t, bob.Inventory, game.InventoryCapacity)
	g := tr.world.GroundItem(gift.ID)
	require.NotNil(t, g)
	assert.Equal(t, bob.X+dropOffset, g.X)
}

func TestTradeDeclineNotifiesOtherParty(t *testing.T) {
	tr := newTestRoom(t, nil)
	sa, recA, _ := tr.login(t, "alice", nil)
	sb, recB, bob := tr.login(t, "bob", nil)

	tr.dispatch(sa, TradeRequestIntent{ToID: bob.ID, Offer: Offer{}})
	tradeID := recB.last(t, typeTradeRequest)["trade"].(map[string]any)["id"].(string)
	tr.dispatch(sb, TradeDeclineIntent{TradeID: tradeID})

	assert.Equal(t, tradeID, recA.last(t, typeTradeDeclined)["tradeId"])
	assert.Equal(t, 0, tr.trades.Len())

	// 已丢弃的交易再次操作：静默忽略
	recB.reset()
	tr.dispatch(sb, TradeDeclineIntent{TradeID: tradeID})
	assert.Empty(t, recB.of(typeError))
}

func TestDisconnectAbandonsTrades(t *testing.T) {
	tr := newTestRoom(t, nil)
	sa, recA, _ := tr.login(t, "alice", nil)
	sb, recB, bob := tr.login(t, "bob", nil)

	tr.dispatch(sa, TradeRequestIntent{ToID: bob.ID, Offer: Offer{}})
	tradeID := recB.last(t, typeTradeRequest)["trade"].(map[string]any)["id"].(string)
	tr.leave(sb)

	assert.Equal(t, tradeID, recA.last(t, typeTradeDeclined)["tradeId"])
	assert.Equal(t, 0, tr.trades.Len())
}

func TestTradeBookAbandon(t *testing.T) {
	b := NewTradeBook()
	p1 := &Player{ID: "p1"}
	p2 := &Player{ID: "p2"}
	p3 := &Player{ID: "p3"}
	_, err := b.Request("t1", p1, p2, Offer{})
	require.NoError(t, err)
	_, err = b.Request("t2", p3, p1, Offer{})
	require.NoError(t, err)
	_, err = b.Request("t3", p2, p3, Offer{})
	require.NoError(t, err)

	gone := b.Abandon("p1")
	assert.Len(t, gone, 2)
	for _, tr := range gone {
		assert.Equal(t, TradeAbandoned, tr.State)
	}
	assert.Equal(t, 1, b.Len())
	left, err := b.Decline("t3", "p3")
	require.NoError(t, err)
	assert.Equal(t, TradeDeclined, left.State)
}
