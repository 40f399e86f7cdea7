package game

import (
	"fmt"
	"math"
)

// Template 物品模板
type Template struct {
	Key      string
	Name     string
	Category Category
	Icon     string
	Base     Bonus
}

var templates = []Template{
	{Key: "bronze_sword", Name: "Bronze Sword", Category: Weapon, Base: Bonus{Strength: 2}, Icon: "🗡️"},
	{Key: "oak_staff", Name: "Oak Staff", Category: Weapon, Base: Bonus{Magic: 3}, Icon: "✨"},
	{Key: "leather_armor", Name: "Leather Armor", Category: Armor, Base: Bonus{Defense: 2}, Icon: "🛡️"},
	{Key: "hp_potion", Name: "Health Potion", Category: Potion, Base: Bonus{Heal: 40}, Icon: "🧪"},
	{Key: "iron_ingot", Name: "Iron Ingot", Category: Material, Icon: "⛓️"},
	{Key: "wood", Name: "Wood", Category: Material, Icon: "🪵"},
}

var templateIndex = func() map[string]Template {
	m := make(map[string]Template, len(templates))
	for _, t := range templates {
		m[t.Key] = t
	}
	return m
}()

// LookupTemplate 按 key 查模板
func LookupTemplate(key string) (Template, bool) {
	t, ok := templateIndex[key]
	return t, ok
}

// Templates 全部模板（副本）
func Templates() []Template {
	return append([]Template(nil), templates...)
}

// NewItem 以稀有度倍率实例化模板，非零基础值至少为 1
func NewItem(id, key string, rarity Rarity) (Item, error) {
	t, ok := templateIndex[key]
	if !ok {
		return Item{}, fmt.Errorf("unknown item template %q", key)
	}
	mult := rarity.Multiplier()
	scale := func(v int) int {
		if v == 0 {
			return 0
		}
		return max(1, int(math.Round(float64(v)*mult)))
	}
	return Item{
		ID:       id,
		Key:      t.Key,
		Name:     t.Name,
		Category: t.Category,
		Icon:     t.Icon,
		Rarity:   rarity,
		Meta: Bonus{
			Strength: scale(t.Base.Strength),
			Magic:    scale(t.Base.Magic),
			Defense:  scale(t.Base.Defense),
			Heal:     scale(t.Base.Heal),
		},
	}, nil
}

// Ingredient 配方材料
type Ingredient struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Recipe 合成配方
type Recipe struct {
	Key         string
	Result      string
	Rarity      Rarity
	Ingredients []Ingredient
}

var recipes = map[string]Recipe{
	"bronze_sword": {
		Key: "bronze_sword", Result: "bronze_sword", Rarity: Uncommon,
		Ingredients: []Ingredient{{Key: "iron_ingot", Count: 2}, {Key: "wood", Count: 1}},
	},
	"oak_staff": {
		Key: "oak_staff", Result: "oak_staff", Rarity: Rare,
		Ingredients: []Ingredient{{Key: "wood", Count: 3}, {Key: "iron_ingot", Count: 1}},
	},
}

// LookupRecipe 按 key 查配方
func LookupRecipe(key string) (Recipe, bool) {
	r, ok := recipes[key]
	return r, ok
}

// DefaultClass 新账号的职业标签；属性一律从 DefaultStats 起步
const DefaultClass = "Warrior"

// SkillNode 技能树节点：固定消耗与固定属性增量
type SkillNode struct {
	ID    string
	Cost  int
	Apply func(*Stats)
}

var skillNodes = map[string]SkillNode{
	"STR1": {ID: "STR1", Cost: 1, Apply: func(s *Stats) { s.Strength++ }},
	"DEF1": {ID: "DEF1", Cost: 1, Apply: func(s *Stats) { s.Defense++ }},
	"MAG1": {ID: "MAG1", Cost: 1, Apply: func(s *Stats) { s.Magic++ }},
	"HP1":  {ID: "HP1", Cost: 1, Apply: func(s *Stats) { s.MaxHP += 5; s.HP += 5 }},
	"SPD1": {ID: "SPD1", Cost: 1, Apply: func(s *Stats) { s.Speed += 0.3 }},
}

// LookupSkill 按 id 查技能节点
func LookupSkill(id string) (SkillNode, bool) {
	n, ok := skillNodes[id]
	return n, ok
}

// MonsterTemplate 怪物模板
type MonsterTemplate struct {
	HP     float64
	Attack float64
	Speed  float64
	XP     int
	Gold   int
}

var (
	normalMonster = MonsterTemplate{HP: 60, Attack: 3, Speed: 0.8, XP: 25, Gold: 10}
	bossMonster   = MonsterTemplate{HP: 240, Attack: 8, Speed: 1.1, XP: 120, Gold: 50}
)

// MonsterFor 普通怪或 Boss 的模板
func MonsterFor(boss bool) MonsterTemplate {
	if boss {
		return bossMonster
	}
	return normalMonster
}
