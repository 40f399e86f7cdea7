package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"idlearena/game"
)

// Intent 客户端意图（已通过字段校验），由事件循环解释并驱动世界状态
type Intent interface {
	Kind() string
	Validate() error
}

// 入站消息类型
const (
	TypeRegister      = "register"
	TypeLogin         = "login"
	TypeMove          = "move"
	TypeUpdate        = "update"
	TypeToggleAuto    = "toggleAuto"
	TypeTrain         = "train"
	TypeAttackMonster = "attackMonster"
	TypeAttack        = "attack"
	TypeRangedAttack  = "rangedAttack"
	TypePickup        = "pickup"
	TypeEquipItem     = "equipItem"
	TypeUseItem       = "useItem"
	TypeCraft         = "craft"
	TypeBuySkill      = "buySkill"
	TypeTradeRequest  = "tradeRequest"
	TypeTradeAccept   = "tradeAccept"
	TypeTradeDecline  = "tradeDecline"
	TypeSave          = "save"
)

// envelope 只取 type 字段用于路由
type envelope struct {
	Type string `json:"type"`
}

func required(field, v string) error {
	if v == "" {
		return fmt.Errorf("missing field %q", field)
	}
	return nil
}

type RegisterIntent struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (RegisterIntent) Kind() string { return TypeRegister }
func (in RegisterIntent) Validate() error {
	if err := required("username", in.Username); err != nil {
		return err
	}
	if len(in.Username) > 32 {
		return errors.New("username too long")
	}
	return required("password", in.Password)
}

// LoginIntent 账号密码登录，或用 init 下发的 token 恢复会话
type LoginIntent struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Token    string `json:"token"`
}

func (LoginIntent) Kind() string { return TypeLogin }
func (in LoginIntent) Validate() error {
	if in.Token != "" {
		return nil
	}
	if err := required("username", in.Username); err != nil {
		return err
	}
	return required("password", in.Password)
}

type MoveIntent struct {
	X    *float64  `json:"x"`
	Y    *float64  `json:"y"`
	Zone game.Zone `json:"zone"`
}

func (MoveIntent) Kind() string { return TypeMove }
func (in MoveIntent) Validate() error {
	if in.X == nil || in.Y == nil {
		return errors.New("missing field \"x\" or \"y\"")
	}
	if in.Zone != "" && !in.Zone.Valid() {
		return fmt.Errorf("unknown zone %q", in.Zone)
	}
	return nil
}

type ToggleAutoIntent struct {
	On *bool `json:"on"`
}

func (ToggleAutoIntent) Kind() string { return TypeToggleAuto }
func (in ToggleAutoIntent) Validate() error {
	if in.On == nil {
		return errors.New("missing field \"on\"")
	}
	return nil
}

var trainableStats = []string{"strength", "defense", "magic", "speed"}

type TrainIntent struct {
	Stat string `json:"stat"`
}

func (TrainIntent) Kind() string { return TypeTrain }
func (in TrainIntent) Validate() error {
	if !slices.Contains(trainableStats, in.Stat) {
		return fmt.Errorf("unknown stat %q", in.Stat)
	}
	return nil
}

type AttackMonsterIntent struct {
	MonsterID string `json:"monsterId"`
}

func (AttackMonsterIntent) Kind() string     { return TypeAttackMonster }
func (in AttackMonsterIntent) Validate() error { return required("monsterId", in.MonsterID) }

type RangedAttackIntent struct {
	TargetID PlayerID `json:"targetId"`
}

func (RangedAttackIntent) Kind() string     { return TypeRangedAttack }
func (in RangedAttackIntent) Validate() error { return required("targetId", string(in.TargetID)) }

type PickupIntent struct{}

func (PickupIntent) Kind() string   { return TypePickup }
func (PickupIntent) Validate() error { return nil }

type EquipItemIntent struct {
	ItemID string `json:"itemId"`
}

func (EquipItemIntent) Kind() string     { return TypeEquipItem }
func (in EquipItemIntent) Validate() error { return required("itemId", in.ItemID) }

type UseItemIntent struct {
	ItemID string `json:"itemId"`
}

func (UseItemIntent) Kind() string     { return TypeUseItem }
func (in UseItemIntent) Validate() error { return required("itemId", in.ItemID) }

type CraftIntent struct {
	Recipe string `json:"recipe"`
}

func (CraftIntent) Kind() string     { return TypeCraft }
func (in CraftIntent) Validate() error { return required("recipe", in.Recipe) }

type BuySkillIntent struct {
	Node string `json:"node"`
}

func (BuySkillIntent) Kind() string     { return TypeBuySkill }
func (in BuySkillIntent) Validate() error { return required("node", in.Node) }

// Offer 交易一方拿出的物品与金币
type Offer struct {
	ItemIDs []string `json:"itemIds"`
	Gold    int      `json:"gold"`
}

func (o Offer) validate() error {
	if o.Gold < 0 {
		return errors.New("negative gold")
	}
	return nil
}

type TradeRequestIntent struct {
	ToID  PlayerID `json:"toId"`
	Offer Offer    `json:"offer"`
}

func (TradeRequestIntent) Kind() string { return TypeTradeRequest }
func (in TradeRequestIntent) Validate() error {
	if err := required("toId", string(in.ToID)); err != nil {
		return err
	}
	return in.Offer.validate()
}

type TradeAcceptIntent struct {
	TradeID string `json:"tradeId"`
	Ask     Offer  `json:"ask"`
}

func (TradeAcceptIntent) Kind() string { return TypeTradeAccept }
func (in TradeAcceptIntent) Validate() error {
	if err := required("tradeId", in.TradeID); err != nil {
		return err
	}
	return in.Ask.validate()
}

type TradeDeclineIntent struct {
	TradeID string `json:"tradeId"`
}

func (TradeDeclineIntent) Kind() string     { return TypeTradeDecline }
func (in TradeDeclineIntent) Validate() error { return required("tradeId", in.TradeID) }

type SaveIntent struct{}

func (SaveIntent) Kind() string   { return TypeSave }
func (SaveIntent) Validate() error { return nil }

// decodeAs 解码为具体意图并做必填字段校验
func decodeAs[T Intent](raw []byte) (Intent, error) {
	var in T
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProtocol, in.Kind(), err)
	}
	return in, nil
}

// gatewayDecoders 登录前的意图，由连接协程处理（涉及 bcrypt 与存储 I/O）
var gatewayDecoders = map[string]func([]byte) (Intent, error){
	TypeRegister: decodeAs[RegisterIntent],
	TypeLogin:    decodeAs[LoginIntent],
}

// DecodeIntent 解析一条入站消息；未知类型或字段缺失返回 ErrProtocol
func DecodeIntent(raw []byte) (Intent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if dec, ok := gatewayDecoders[env.Type]; ok {
		return dec(raw)
	}
	if rt, ok := routes[env.Type]; ok {
		return rt.decode(raw)
	}
	return nil, fmt.Errorf("%w: unknown message type %q", ErrProtocol, env.Type)
}
