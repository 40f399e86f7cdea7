package game

import (
	"math"
	"time"
)

// Rand 可注入的随机源，*rand.Rand (math/rand/v2) 满足该接口
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// 成长常量
const (
	XPBase       = 50
	XPIncrement  = 30
	HPPerLevel   = 5
	TrainStep    = 0.12
	TrainXP      = 1
	TrainHeal    = 0.08
	PickupRadius = 26.0
	ContactRange = 28.0
)

// 掉落概率
const (
	DropChanceNormal = 0.45
	DropChanceBoss   = 0.75
	// 被怪物击杀时掉出一件背包物品的概率
	DeathSpillChance = 0.45
)

// Damage 伤害 = 攻击力 - 防御，向下取整，最低为 1
func Damage(power, defense float64) int {
	return max(1, int(math.Floor(power-defense)))
}

// MeleeDamage 近战伤害：力量 + 武器加成，怪物无防御
func MeleeDamage(s Stats, weaponBonus int) int {
	return Damage(s.Strength+float64(weaponBonus), 0)
}

// XPToNext 从 level 升到 level+1 所需经验
func XPToNext(level int) int {
	return XPBase + (level-1)*XPIncrement
}

// GrantXP 增加经验并处理连续升级，返回升级次数
func GrantXP(p *Progress, s *Stats, xp int) int {
	p.XP += xp
	return CheckLevel(p, s)
}

// CheckLevel 经验越过阈值时升级：+1 技能点、生命上限提升并回满
func CheckLevel(p *Progress, s *Stats) int {
	ups := 0
	for need := XPToNext(p.Level); p.XP >= need; need = XPToNext(p.Level) {
		p.XP -= need
		p.Level++
		p.SkillPoints++
		s.MaxHP += HPPerLevel
		s.HP = s.MaxHP
		ups++
	}
	return ups
}

// OfflineGain 离线收益：离开超过 10 秒才结算
type OfflineGain struct {
	Seconds int `json:"seconds"`
	XP      int `json:"xp"`
	Gold    int `json:"gold"`
}

// ComputeOfflineGain 按离线秒数与挂机强度计算经验与金币
func ComputeOfflineGain(s Stats, away time.Duration) (OfflineGain, bool) {
	secs := int(away / time.Second)
	if secs <= 10 {
		return OfflineGain{}, false
	}
	power := max(1, int(math.Floor(s.Strength*0.4+s.Magic*0.2)))
	return OfflineGain{
		Seconds: secs,
		XP:      int(math.Floor(float64(secs*power) * 0.01)),
		Gold:    int(math.Floor(float64(secs*power) * 0.002)),
	}, true
}

// RollDrop 击杀后是否掉落
func RollDrop(rng Rand, boss bool) bool {
	chance := DropChanceNormal
	if boss {
		chance = DropChanceBoss
	}
	return rng.Float64() < chance
}

// 加权稀有度表，普通出现概率最高
var rarityTable = []Rarity{Common, Common, Uncommon, Rare, Epic}

// RollRarity 按权重表抽取稀有度
func RollRarity(rng Rand) Rarity {
	return rarityTable[rng.IntN(len(rarityTable))]
}

// RandomDrop 随机模板 + 随机稀有度
func RandomDrop(rng Rand, id string) Item {
	rarity := RollRarity(rng)
	t := templates[rng.IntN(len(templates))]
	it, _ := NewItem(id, t.Key, rarity)
	return it
}

// MissingIngredients 背包是否缺少配方材料
func MissingIngredients(inv []Item, r Recipe) bool {
	counts := CountByKey(inv)
	for _, ing := range r.Ingredients {
		if counts[ing.Key] < ing.Count {
			return true
		}
	}
	return false
}

// ConsumeIngredients 从背包末尾开始移除配方材料，返回新背包；材料不足时原样返回 false
func ConsumeIngredients(inv []Item, r Recipe) ([]Item, bool) {
	if MissingIngredients(inv, r) {
		return inv, false
	}
	need := make(map[string]int, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		need[ing.Key] += ing.Count
	}
	kept := make([]Item, 0, len(inv))
	for i := len(inv) - 1; i >= 0; i-- {
		if need[inv[i].Key] > 0 {
			need[inv[i].Key]--
			continue
		}
		kept = append(kept, inv[i])
	}
	// 恢复原有顺序
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept, true
}

// Distance 两点距离
func Distance(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}

// StepToward 朝目标直线移动最多 speed 距离
func StepToward(x, y, tx, ty, speed float64) (float64, float64) {
	dx, dy := tx-x, ty-y
	dist := math.Hypot(dx, dy)
	if dist <= 1 {
		return x, y
	}
	step := min(speed, dist)
	return x + dx/dist*step, y + dy/dist*step
}
