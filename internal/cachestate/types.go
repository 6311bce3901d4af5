package cachestate

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Side 表示一个版本下的两类独立缓存。
type Side int

const (
	SideGame Side = iota
	SideOffline
)

// Sides 按固定顺序列出所有缓存侧，便于遍历。
var Sides = [...]Side{SideGame, SideOffline}

// SideFromOffline 将线上协议中的 offline 布尔值还原为 Side。
func SideFromOffline(offline bool) Side {
	if offline {
		return SideOffline
	}
	return SideGame
}

// Offline 返回线上协议使用的 offline 标志。
func (s Side) Offline() bool {
	return s == SideOffline
}

func (s Side) String() string {
	switch s {
	case SideGame:
		return "game"
	case SideOffline:
		return "offline"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// ParseSide 解析 game/offline 字符串，大小写不敏感。
func ParseSide(raw string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "game":
		return SideGame, nil
	case "offline":
		return SideOffline, nil
	default:
		return 0, fmt.Errorf("unknown cache side %q", raw)
	}
}

// ItemDescriptor 描述 worker 上报的单个缓存条目。
type ItemDescriptor struct {
	Size    int64  `json:"size"`
	Hash    string `json:"hash,omitempty"`
	Corrupt bool   `json:"corrupt,omitempty"`
}

// Items 是 item-path → ItemDescriptor 的完整清单。
type Items map[string]ItemDescriptor

// Clone 返回独立副本；nil 会被规范化为空 map。
func (i Items) Clone() Items {
	out := make(Items, len(i))
	for path, item := range i {
		out[path] = item
	}
	return out
}

// SideState 记录单侧缓存的完成标志与条目清单。
// Done=false 表示校验/传输进行中或未知；Done=true 表示最近一次状态已稳定。
type SideState struct {
	Done  bool  `json:"done"`
	Items Items `json:"items"`
}

// Settled 表示该侧已稳定。
func (s SideState) Settled() bool {
	return s.Done
}

// Present 表示该侧已稳定且包含条目，批量清理只作用于这类记录。
func (s SideState) Present() bool {
	return s.Done && len(s.Items) > 0
}

func (s SideState) clone() SideState {
	return SideState{Done: s.Done, Items: s.Items.Clone()}
}

// Record 是单个版本的缓存状态，按 Side 索引。
type Record struct {
	VersionID string
	sides     [len(Sides)]SideState
}

func newRecord(versionID string) *Record {
	r := &Record{VersionID: versionID}
	for _, side := range Sides {
		r.sides[side] = SideState{Items: Items{}}
	}
	return r
}

// Side 返回指定侧的状态副本。
func (r Record) Side(side Side) SideState {
	if side < 0 || int(side) >= len(r.sides) {
		return SideState{Items: Items{}}
	}
	return r.sides[side].clone()
}

// GameDone/GameItems/OfflineDone/OfflineItems 保留扁平字段视图，供渲染层直接取用。
func (r Record) GameDone() bool {
	return r.sides[SideGame].Done
}

func (r Record) GameItems() Items {
	return r.sides[SideGame].Items.Clone()
}

func (r Record) OfflineDone() bool {
	return r.sides[SideOffline].Done
}

func (r Record) OfflineItems() Items {
	return r.sides[SideOffline].Items.Clone()
}

func (r *Record) set(side Side, items Items, done bool) {
	r.sides[side] = SideState{Done: done, Items: items.Clone()}
}

func (r Record) clone() Record {
	out := Record{VersionID: r.VersionID}
	for _, side := range Sides {
		out.sides[side] = r.sides[side].clone()
	}
	return out
}

type recordPayload struct {
	VersionID    string `json:"versionUuid"`
	GameDone     bool   `json:"gameDone"`
	GameItems    Items  `json:"gameItems"`
	OfflineDone  bool   `json:"offlineDone"`
	OfflineItems Items  `json:"offlineItems"`
}

// MarshalJSON 输出与 UI 约定的扁平结构（gameDone/gameItems/offlineDone/offlineItems）。
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordPayload{
		VersionID:    r.VersionID,
		GameDone:     r.GameDone(),
		GameItems:    r.GameItems(),
		OfflineDone:  r.OfflineDone(),
		OfflineItems: r.OfflineItems(),
	})
}

// ProgressEvent 是 worker 推送的单侧进度消息，仅被消费一次。
type ProgressEvent struct {
	VersionID string `json:"uuid"`
	Offline   bool   `json:"offline"`
	Done      bool   `json:"done"`
	Items     Items  `json:"items"`
}

// Side 返回事件所指向的缓存侧。
func (e ProgressEvent) Side() Side {
	return SideFromOffline(e.Offline)
}
