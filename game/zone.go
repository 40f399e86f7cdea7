package game

// 地图尺寸
const (
	MapWidth  = 900.0
	MapHeight = 600.0
	// 玩家占位尺寸，坐标裁剪到 [0, W-size]
	PlayerSize = 20.0
)

// Zone 地图区域
type Zone string

const (
	ZoneSpawn   Zone = "spawn"
	ZoneForest  Zone = "forest"
	ZoneCave    Zone = "cave"
	ZoneDungeon Zone = "dungeon"
	ZonePvP     Zone = "pvp"
)

var zoneOrigins = map[Zone]float64{
	ZoneSpawn:   10,
	ZoneForest:  120,
	ZoneCave:    350,
	ZoneDungeon: 600,
	ZonePvP:     600,
}

// Valid 是否为已知区域
func (z Zone) Valid() bool {
	_, ok := zoneOrigins[z]
	return ok
}

// Origin 怪物刷新区域的 x 起点
func (z Zone) Origin() float64 { return zoneOrigins[z] }

// Training 可训练区域
func (z Zone) Training() bool { return z == ZoneSpawn || z == ZoneForest }

// PvP 允许玩家互相攻击的区域
func (z Zone) PvP() bool { return z == ZoneDungeon || z == ZonePvP }

// Safe 怪物不会追击安全区内的玩家
func (z Zone) Safe() bool { return z == ZoneSpawn }

// Clamp 将玩家坐标裁剪到地图范围
func Clamp(x, y float64) (float64, float64) {
	x = max(0, min(MapWidth-PlayerSize, x))
	y = max(0, min(MapHeight-PlayerSize, y))
	return x, y
}
