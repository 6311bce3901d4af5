package confirm

import (
	"strings"

	"github.com/cachesync/cachesync/internal/notice"
)

// Action 标识一个需要确认的破坏性操作。
type Action string

const (
	ActionClearGame        Action = "clear_game"
	ActionDeleteOffline    Action = "delete_offline"
	ActionClearAllGame     Action = "clear_all_game"
	ActionDeleteAllOffline Action = "delete_all_offline"
	ActionRemoveBuild      Action = "remove_build"
)

// actionSpec 描述确认弹窗的文案键以及是否需要单个版本作为目标。
type actionSpec struct {
	messageKey  string
	confirmKey  string
	needsTarget bool
}

var actionSpecs = map[Action]actionSpec{
	ActionClearGame:        {messageKey: notice.KeyConfirmClearOne, confirmKey: notice.KeyActionClearOne, needsTarget: true},
	ActionDeleteOffline:    {messageKey: notice.KeyConfirmDeleteOne, confirmKey: notice.KeyActionDeleteOne, needsTarget: true},
	ActionClearAllGame:     {messageKey: notice.KeyConfirmClearAll, confirmKey: notice.KeyActionClear},
	ActionDeleteAllOffline: {messageKey: notice.KeyConfirmDeleteAll, confirmKey: notice.KeyActionDelete},
	ActionRemoveBuild:      {messageKey: notice.KeyConfirmRemoveBuild, confirmKey: notice.KeyActionRemoveCaches, needsTarget: true},
}

// ParseAction 解析动作名，大小写不敏感。
func ParseAction(raw string) (Action, bool) {
	action := Action(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := actionSpecs[action]
	return action, ok
}
