package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const adminTimeout = 2 * time.Second

// HandleAdminConfig 提供规则参数的读取与更新（热更新，经事件循环生效）
// GET /admin/config  返回当前参数
// POST /admin/config 以 JSON 载荷更新部分字段
func (m *Manager) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	type patch struct {
		MonsterSpeedFactor *float64 `json:"monsterSpeedFactor,omitempty"`
		PvPGoldLossPercent *int     `json:"pvpGoldLossPercent,omitempty"`
		BossRespawnDelayMs *int64   `json:"bossRespawnDelayMs,omitempty"`
	}

	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		var cur Tunables
		if err := m.room.Call(ctx, func(rm *Room) { cur = rm.Tunables() }); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, cur)
	case http.MethodPost:
		var body patch
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if (body.MonsterSpeedFactor != nil && *body.MonsterSpeedFactor < 0) ||
			(body.PvPGoldLossPercent != nil && (*body.PvPGoldLossPercent < 0 || *body.PvPGoldLossPercent > 100)) ||
			(body.BossRespawnDelayMs != nil && *body.BossRespawnDelayMs < 0) {
			http.Error(w, "value out of range", http.StatusBadRequest)
			return
		}
		var cur Tunables
		err := m.room.Call(ctx, func(rm *Room) {
			t := rm.Tunables()
			if body.MonsterSpeedFactor != nil {
				t.MonsterSpeedFactor = *body.MonsterSpeedFactor
			}
			if body.PvPGoldLossPercent != nil {
				t.PvPGoldLossPercent = *body.PvPGoldLossPercent
			}
			if body.BossRespawnDelayMs != nil {
				t.BossRespawnDelayMs = *body.BossRespawnDelayMs
			}
			rm.SetTunables(t)
			cur = t
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		Log.Infow("tunables updated",
			"monster_speed_factor", cur.MonsterSpeedFactor,
			"pvp_gold_loss_percent", cur.PvPGoldLossPercent,
			"boss_respawn_delay_ms", cur.BossRespawnDelayMs)
		writeJSON(w, map[string]any{"ok": true, "config": cur})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics 输出运行指标与世界概况
// GET /metrics
func (m *Manager) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()

	var world map[string]any
	if err := m.room.Call(ctx, func(rm *Room) { world = rm.Stats() }); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]any{
		"world":         world,
		"metrics":       m.metrics.Snapshot(),
		"pending_saves": m.persist.Pending(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
