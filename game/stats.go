package game

// Stats 角色数值（力量/防御/魔法/速度/生命及攻击距离）
type Stats struct {
	Strength   float64 `json:"strength"`
	Defense    float64 `json:"defense"`
	Magic      float64 `json:"magic"`
	Speed      float64 `json:"speed"`
	HP         float64 `json:"hp"`
	MaxHP      float64 `json:"maxHp"`
	MeleeRange float64 `json:"meleeRange"`
	Range      float64 `json:"range"`
}

// DefaultStats 新注册账号的初始数值
func DefaultStats() Stats {
	return Stats{
		Strength:   5,
		Defense:    5,
		Magic:      5,
		Speed:      3,
		HP:         30,
		MaxHP:      30,
		MeleeRange: 30,
		Range:      60,
	}
}

// Heal 恢复生命，不超过上限；返回实际恢复量
func (s *Stats) Heal(amount float64) float64 {
	before := s.HP
	s.HP = min(s.MaxHP, s.HP+amount)
	return s.HP - before
}

// Hurt 扣减生命，下限为 0；返回是否死亡
func (s *Stats) Hurt(amount int) bool {
	s.HP = max(0, s.HP-float64(amount))
	return s.HP <= 0
}

// Restore 满血
func (s *Stats) Restore() { s.HP = s.MaxHP }

// Add 按名称增加某项训练属性；未知属性返回 false
func (s *Stats) Add(stat string, delta float64) bool {
	switch stat {
	case "strength":
		s.Strength += delta
	case "defense":
		s.Defense += delta
	case "magic":
		s.Magic += delta
	case "speed":
		s.Speed += delta
	default:
		return false
	}
	return true
}

// Progress 等级进度
type Progress struct {
	Level       int `json:"level"`
	XP          int `json:"xp"`
	SkillPoints int `json:"skillPoints"`
}

// NewProgress 1 级、零经验
func NewProgress() Progress { return Progress{Level: 1} }
