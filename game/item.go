package game

// Category 物品类别
type Category string

const (
	Weapon   Category = "weapon"
	Armor    Category = "armor"
	Potion   Category = "potion"
	Material Category = "material"
)

// Equippable 武器与护甲各占一个装备槽
func (c Category) Equippable() bool { return c == Weapon || c == Armor }

// Rarity 稀有度，创建时乘到模板基础属性上
type Rarity string

const (
	Common   Rarity = "Common"
	Uncommon Rarity = "Uncommon"
	Rare     Rarity = "Rare"
	Epic     Rarity = "Epic"
)

var rarityMultipliers = map[Rarity]float64{
	Common:   1,
	Uncommon: 1.25,
	Rare:     1.6,
	Epic:     2.2,
}

// Multiplier 未知稀有度按 1 处理
func (r Rarity) Multiplier() float64 {
	if m, ok := rarityMultipliers[r]; ok {
		return m
	}
	return 1
}

// Bonus 物品实例的数值加成（创建后冻结）
type Bonus struct {
	Strength int `json:"strength,omitempty"`
	Magic    int `json:"magic,omitempty"`
	Defense  int `json:"defense,omitempty"`
	Heal     int `json:"heal,omitempty"`
}

// Attack 武器攻击加成：优先力量，其次魔法
func (b Bonus) Attack() int {
	if b.Strength != 0 {
		return b.Strength
	}
	return b.Magic
}

// Item 物品实例：只能属于一个背包、一次掉落或地面集合之一
type Item struct {
	ID       string   `json:"id"`
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	Category Category `json:"type"`
	Icon     string   `json:"icon,omitempty"`
	Rarity   Rarity   `json:"rarity"`
	Meta     Bonus    `json:"meta"`
	Equipped bool     `json:"equipped,omitempty"`
}

// GroundItem 地面上的物品
type GroundItem struct {
	Item
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// InventoryCapacity 背包格数
const InventoryCapacity = 5

// CountByKey 统计背包中各模板数量
func CountByKey(inv []Item) map[string]int {
	counts := make(map[string]int, len(inv))
	for _, it := range inv {
		counts[it.Key]++
	}
	return counts
}

// IndexOf 按 id 查找背包位置，找不到返回 -1
func IndexOf(inv []Item, id string) int {
	for i := range inv {
		if inv[i].ID == id {
			return i
		}
	}
	return -1
}

// Equipped 返回某类别当前装备的物品
func Equipped(inv []Item, c Category) (Item, bool) {
	for _, it := range inv {
		if it.Category == c && it.Equipped {
			return it, true
		}
	}
	return Item{}, false
}
