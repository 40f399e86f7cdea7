package server

import (
	"math"

	"idlearena/game"
	"idlearena/store"
)

// PlayerID 表示玩家唯一标识（会话级，每次登录重新分配）
type PlayerID string

// Equipment 装备槽对背包物品的反向引用（按物品 id）
type Equipment struct {
	Weapon string `json:"weapon,omitempty"`
	Armor  string `json:"armor,omitempty"`
}

// Player 在线玩家（服务端权威状态），只存在于注册表中
type Player struct {
	ID       PlayerID  `json:"id"`
	Username string    `json:"username"`
	Class    string    `json:"class"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Zone     game.Zone `json:"zone"`

	Stats game.Stats `json:"stats"`
	game.Progress
	Gold      int         `json:"gold"`
	Inventory []game.Item `json:"inventory"`
	Equipment Equipment   `json:"equipment"`

	AutoGather bool `json:"autoGather"`
}

// newPlayer 由账号快照实例化玩家，出生在安全区
func newPlayer(id PlayerID, acc *store.Account, x, y float64) *Player {
	p := &Player{
		ID:        id,
		Username:  acc.Username,
		Class:     acc.Class,
		X:         x,
		Y:         y,
		Zone:      game.ZoneSpawn,
		Stats:     acc.Stats,
		Progress:  acc.Progress,
		Gold:      acc.Gold,
		Inventory: append([]game.Item{}, acc.Inventory...),
	}
	if p.Class == "" {
		p.Class = game.DefaultClass
	}
	if p.Level < 1 {
		p.Level = 1
	}
	p.Stats.HP = max(0, min(p.Stats.HP, p.Stats.MaxHP))
	p.syncEquipment()
	return p
}

// snapshotInto 把玩家当前进度写回账号副本
func (p *Player) snapshotInto(acc *store.Account) {
	acc.Class = p.Class
	acc.Stats = p.Stats
	acc.Progress = p.Progress
	acc.Gold = p.Gold
	acc.Inventory = append([]game.Item{}, p.Inventory...)
}

// syncEquipment 按物品 equipped 标记重建装备引用；同槽多件时只保留第一件
func (p *Player) syncEquipment() {
	p.Equipment = Equipment{}
	for i := range p.Inventory {
		it := &p.Inventory[i]
		if !it.Equipped {
			continue
		}
		switch {
		case it.Category == game.Weapon && p.Equipment.Weapon == "":
			p.Equipment.Weapon = it.ID
		case it.Category == game.Armor && p.Equipment.Armor == "":
			p.Equipment.Armor = it.ID
		default:
			it.Equipped = false
		}
	}
}

// hasRoom 背包是否还有空位
func (p *Player) hasRoom() bool { return len(p.Inventory) < game.InventoryCapacity }

// addItem 放入背包；新到手的物品一律未装备
func (p *Player) addItem(it game.Item) bool {
	if !p.hasRoom() {
		return false
	}
	it.Equipped = false
	p.Inventory = append(p.Inventory, it)
	return true
}

// removeItemAt 取出背包中的物品并解除装备
func (p *Player) removeItemAt(idx int) game.Item {
	it := p.Inventory[idx]
	p.Inventory = append(p.Inventory[:idx:idx], p.Inventory[idx+1:]...)
	it.Equipped = false
	p.syncEquipment()
	return it
}

// weaponBonus 当前武器攻击加成
func (p *Player) weaponBonus() int {
	if it, ok := game.Equipped(p.Inventory, game.Weapon); ok {
		return it.Meta.Attack()
	}
	return 0
}

// defense 基础防御 + 护甲加成
func (p *Player) defense() float64 {
	d := p.Stats.Defense
	if it, ok := game.Equipped(p.Inventory, game.Armor); ok {
		d += float64(it.Meta.Defense)
	}
	return d
}

// respawn 复活到安全点并回满血
func (p *Player) respawn(x, y float64) {
	p.X, p.Y = x, y
	p.Zone = game.ZoneSpawn
	p.Stats.Restore()
}

// loseGold 按百分比扣除金币（向下取整），返回扣除量
func (p *Player) loseGold(percent int) int {
	loss := int(math.Floor(float64(p.Gold) * float64(percent) / 100))
	loss = max(0, min(loss, p.Gold))
	p.Gold -= loss
	return loss
}

// Monster 怪物；死亡后移除并由新实例替换，从不原地复活
type Monster struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	Zone   game.Zone `json:"zone"`
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	HP     float64   `json:"hp"`
	MaxHP  float64   `json:"maxHp"`
	Attack float64   `json:"attack"`
	Speed  float64   `json:"speed"`
	XP     int       `json:"xp"`
	Gold   int       `json:"gold"`
}

const (
	monsterNormal = "monster"
	monsterBoss   = "boss"
)

// Boss 是否为首领
func (m *Monster) Boss() bool { return m.Type == monsterBoss }

func newMonster(id string, zone game.Zone, boss bool, x, y float64) *Monster {
	t := game.MonsterFor(boss)
	kind := monsterNormal
	if boss {
		kind = monsterBoss
	}
	return &Monster{
		ID: id, Type: kind, Zone: zone, X: x, Y: y,
		HP: t.HP, MaxHP: t.HP, Attack: t.Attack, Speed: t.Speed, XP: t.XP, Gold: t.Gold,
	}
}
