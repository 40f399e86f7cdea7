package server

import (
	"errors"
	"fmt"
	"time"

	"idlearena/game"
)

// route 一种玩法意图的解码与执行；执行只发生在事件循环中
type route struct {
	decode func([]byte) (Intent, error)
	apply  func(r *Room, s *Session, p *Player, in Intent) error
}

// on 把具体类型的处理函数包装为 route
func on[T Intent](fn func(r *Room, s *Session, p *Player, in T) error) route {
	return route{
		decode: decodeAs[T],
		apply: func(r *Room, s *Session, p *Player, in Intent) error {
			v, ok := in.(T)
			if !ok {
				return fmt.Errorf("%w: unexpected intent %T", ErrProtocol, in)
			}
			return fn(r, s, p, v)
		},
	}
}

// routes 登录后的意图分发表；update/attack 为旧客户端使用的别名
var routes = map[string]route{
	TypeMove:          on(handleMove),
	TypeUpdate:        on(handleMove),
	TypeToggleAuto:    on(handleToggleAuto),
	TypeTrain:         on(handleTrain),
	TypeAttackMonster: on(handleAttackMonster),
	TypeAttack:        on(handleAttackMonster),
	TypeRangedAttack:  on(handleRangedAttack),
	TypePickup:        on(handlePickup),
	TypeEquipItem:     on(handleEquipItem),
	TypeUseItem:       on(handleUseItem),
	TypeCraft:         on(handleCraft),
	TypeBuySkill:      on(handleBuySkill),
	TypeTradeRequest:  on(handleTradeRequest),
	TypeTradeAccept:   on(handleTradeAccept),
	TypeTradeDecline:  on(handleTradeDecline),
	TypeSave:          on(handleSave),
}

// silent 由延迟造成的状态偏差，忽略即可，下一次广播会纠正客户端
func silent(err error) bool {
	return errors.Is(err, ErrTargetNotFound) ||
		errors.Is(err, ErrOutOfRange) ||
		errors.Is(err, ErrInventoryFull)
}

// dispatch 执行一条玩法意图，随后检查升级并广播
func (r *Room) dispatch(s *Session, in Intent) {
	if _, ok := r.sessions[s.ID]; !ok {
		return
	}
	if !s.authenticated() {
		s.send(newErrorMessage(ErrNotAuthenticated))
		return
	}
	p := r.world.Player(s.playerID)
	if p == nil {
		return
	}
	rt, ok := routes[in.Kind()]
	if !ok {
		s.send(newErrorMessage(fmt.Errorf("%w: unknown message type %q", ErrProtocol, in.Kind())))
		return
	}
	if err := rt.apply(r, s, p, in); err != nil {
		if silent(err) {
			Log.Debugw("intent ignored", "player", p.ID, "type", in.Kind(), "reason", err)
		} else {
			s.send(newErrorMessage(err))
		}
	} else {
		r.metrics.IncAccepted()
	}
	game.CheckLevel(&p.Progress, &p.Stats)
	r.broadcast()
}

func handleMove(r *Room, _ *Session, p *Player, in MoveIntent) error {
	p.X, p.Y = game.Clamp(*in.X, *in.Y)
	if in.Zone != "" {
		p.Zone = in.Zone
	}
	// 自动拾取，失败不提示
	_ = r.tryPickup(p)
	return nil
}

func handleToggleAuto(_ *Room, _ *Session, p *Player, in ToggleAutoIntent) error {
	p.AutoGather = *in.On
	return nil
}

func handleTrain(_ *Room, _ *Session, p *Player, in TrainIntent) error {
	if !p.Zone.Training() {
		return fmt.Errorf("%w: zone %s has no training", ErrOutOfRange, p.Zone)
	}
	p.Stats.Add(in.Stat, game.TrainStep)
	p.XP += game.TrainXP
	p.Stats.Heal(game.TrainHeal)
	return nil
}

func handleAttackMonster(r *Room, _ *Session, p *Player, in AttackMonsterIntent) error {
	m := r.world.Monster(in.MonsterID)
	if m == nil || m.Zone != p.Zone {
		return ErrTargetNotFound
	}
	reach := p.Stats.MeleeRange
	if reach <= 0 {
		reach = game.DefaultStats().MeleeRange
	}
	if game.Distance(p.X, p.Y, m.X, m.Y) > reach {
		return ErrOutOfRange
	}
	m.HP -= float64(game.MeleeDamage(p.Stats, p.weaponBonus()))
	if m.HP <= 0 {
		r.killMonster(p, m)
	}
	return nil
}

// killMonster 结算奖励与掉落，移除怪物并安排替换：普通怪立即，Boss 延迟
func (r *Room) killMonster(p *Player, m *Monster) {
	game.GrantXP(&p.Progress, &p.Stats, m.XP)
	p.Gold += m.Gold
	r.metrics.IncMonsterKills()

	if game.RollDrop(r.rng, m.Boss()) {
		r.dropItem(m.X, m.Y, game.RandomDrop(r.rng, newID("it")))
	}
	r.world.RemoveMonster(m.ID)

	delay := time.Duration(r.tun.BossRespawnDelayMs) * time.Millisecond
	if m.Boss() && delay > 0 {
		r.pendingSpawns = append(r.pendingSpawns, pendingSpawn{zone: m.Zone, boss: true, due: r.now().Add(delay)})
		Log.Infow("boss slain", "player", p.ID, "monster", m.ID, "respawn_in", delay)
		return
	}
	r.spawnMonster(m.Zone, m.Boss())
}

func handleRangedAttack(r *Room, _ *Session, p *Player, in RangedAttackIntent) error {
	t := r.world.Player(in.TargetID)
	if t == nil || t.ID == p.ID || t.Zone != p.Zone {
		return ErrTargetNotFound
	}
	if !p.Zone.PvP() {
		return fmt.Errorf("%w: no pvp in zone %s", ErrOutOfRange, p.Zone)
	}
	reach := p.Stats.Range
	if reach <= 0 {
		reach = game.DefaultStats().Range
	}
	if game.Distance(p.X, p.Y, t.X, t.Y) > reach {
		return ErrOutOfRange
	}
	if t.Stats.Hurt(game.Damage(p.Stats.Magic, t.defense())) {
		r.pvpKill(p, t)
	}
	return nil
}

// pvpKill 被击败者回到安全点满血复活，按比例损失金币并转给击杀者
func (r *Room) pvpKill(killer, victim *Player) {
	loss := victim.loseGold(r.tun.PvPGoldLossPercent)
	killer.Gold += loss
	victim.respawn(pvpRespawnX, pvpRespawnY)
	r.metrics.IncPlayerDeaths()
	Log.Infow("player defeated", "killer", killer.ID, "victim", victim.ID, "gold_lost", loss)
}

func handlePickup(r *Room, _ *Session, p *Player, _ PickupIntent) error {
	return r.tryPickup(p)
}

// tryPickup 拾取半径内最近的地面物品
func (r *Room) tryPickup(p *Player) error {
	g := r.world.NearestGroundItem(p.X, p.Y, game.PickupRadius)
	if g == nil {
		return ErrTargetNotFound
	}
	if !p.addItem(g.Item) {
		return ErrInventoryFull
	}
	r.world.RemoveGroundItem(g.ID)
	return nil
}

// dropItem 把物品放到地面（坐标限制在地图内）
func (r *Room) dropItem(x, y float64, it game.Item) {
	it.Equipped = false
	x, y = game.Clamp(x, y)
	r.world.AddGroundItem(&game.GroundItem{Item: it, X: x, Y: y})
}

// dropBeside 背包放不下的物品落在玩家身旁
func (r *Room) dropBeside(p *Player, it game.Item) {
	r.dropItem(p.X+dropOffset, p.Y+dropOffset, it)
}

// handleEquipItem 切换装备状态；装备时卸下同类的其他物品
func handleEquipItem(_ *Room, _ *Session, p *Player, in EquipItemIntent) error {
	idx := game.IndexOf(p.Inventory, in.ItemID)
	if idx < 0 {
		return ErrTargetNotFound
	}
	it := &p.Inventory[idx]
	if !it.Category.Equippable() {
		return nil
	}
	if it.Equipped {
		it.Equipped = false
	} else {
		for i := range p.Inventory {
			if p.Inventory[i].Category == it.Category {
				p.Inventory[i].Equipped = false
			}
		}
		it.Equipped = true
	}
	p.syncEquipment()
	return nil
}

const defaultPotionHeal = 20

func handleUseItem(_ *Room, _ *Session, p *Player, in UseItemIntent) error {
	idx := game.IndexOf(p.Inventory, in.ItemID)
	if idx < 0 {
		return ErrTargetNotFound
	}
	it := p.Inventory[idx]
	if it.Category != game.Potion {
		return nil
	}
	heal := it.Meta.Heal
	if heal <= 0 {
		heal = defaultPotionHeal
	}
	p.Stats.Heal(float64(heal))
	p.removeItemAt(idx)
	return nil
}

// handleCraft 消耗材料与产出物品在同一步完成：先造物品，再一次性替换背包
func handleCraft(r *Room, s *Session, p *Player, in CraftIntent) error {
	recipe, ok := game.LookupRecipe(in.Recipe)
	if !ok {
		s.send(craftResultMessage{Type: typeCraftResult, OK: false, Reason: "unknown"})
		return nil
	}
	item, err := game.NewItem(newID("it"), recipe.Result, recipe.Rarity)
	if err != nil {
		return fmt.Errorf("craft %s: %w", recipe.Key, err)
	}
	inv, ok := game.ConsumeIngredients(p.Inventory, recipe)
	if !ok {
		s.send(craftResultMessage{Type: typeCraftResult, OK: false, Reason: errorCode(ErrMissingIngredients)})
		return nil
	}
	p.Inventory = inv
	p.syncEquipment()
	if !p.addItem(item) {
		r.dropBeside(p, item)
	}
	s.send(craftResultMessage{Type: typeCraftResult, OK: true, Item: &item})
	return nil
}

// handleBuySkill 未知节点直接忽略
func handleBuySkill(_ *Room, _ *Session, p *Player, in BuySkillIntent) error {
	node, ok := game.LookupSkill(in.Node)
	if !ok {
		return nil
	}
	if p.SkillPoints < node.Cost {
		return ErrInsufficientSkillPoints
	}
	node.Apply(&p.Stats)
	p.SkillPoints -= node.Cost
	return nil
}

func handleTradeRequest(r *Room, s *Session, p *Player, in TradeRequestIntent) error {
	t, err := r.trades.Request(newID("t"), p, r.world.Player(in.ToID), in.Offer)
	if err != nil {
		s.send(tradeResponseMessage{Type: typeTradeResponse, OK: false, Code: errorCode(err), Message: err.Error()})
		return nil
	}
	r.sendTo(t.ToID, tradeMessage{Type: typeTradeRequest, Trade: t})
	s.send(tradeResponseMessage{Type: typeTradeResponse, OK: true, Trade: t})
	return nil
}

// handleTradeAccept 失败时交易被丢弃，通知发起方
func handleTradeAccept(r *Room, s *Session, p *Player, in TradeAcceptIntent) error {
	t, err := r.trades.Accept(in.TradeID, p, in.Ask, r.world.Player, r.dropBeside)
	if err != nil {
		s.send(tradeResponseMessage{Type: typeTradeResponse, OK: false, Code: errorCode(err), Message: err.Error(), Trade: t})
		if t != nil {
			r.sendTo(t.FromID, tradeDoneMessage{Type: typeTradeDeclined, TradeID: t.ID})
		}
		return nil
	}
	done := tradeDoneMessage{Type: typeTradeComplete, TradeID: t.ID}
	r.sendTo(t.FromID, done)
	r.sendTo(t.ToID, done)
	Log.Infow("trade completed", "trade", t.ID, "from", t.FromID, "to", t.ToID)
	return nil
}

func handleTradeDecline(r *Room, _ *Session, p *Player, in TradeDeclineIntent) error {
	t, err := r.trades.Decline(in.TradeID, p.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTargetNotFound, err)
	}
	other := t.FromID
	if other == p.ID {
		other = t.ToID
	}
	r.sendTo(other, tradeDoneMessage{Type: typeTradeDeclined, TradeID: t.ID})
	return nil
}

func handleSave(r *Room, s *Session, p *Player, _ SaveIntent) error {
	r.save(s, p)
	return nil
}
