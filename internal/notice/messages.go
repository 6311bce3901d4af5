package notice

import (
	"sort"
	"strings"
)

// 消息键沿用界面层的本地化键名，本包只提供默认文案，不负责多语言。
const (
	KeyGameCleared         = "cache.gameClearedSuccessfully"
	KeyFailedClearGame     = "cache.failedClearGame"
	KeyOfflineDeleted      = "cache.offlineDeletedSuccessfully"
	KeyFailedDeleteOffline = "cache.failedDeleteOffline"
	KeyFailedKickoff       = "cache.failedKickoffOffline"
	KeyRepairStarted       = "cache.offlineRepairStarted"
	KeyFailedRepair        = "cache.failedKickoffOffline2"
	KeyFailedValidate      = "cache.failedValidate"
	KeyBuildImported       = "build.imported"
	KeyBuildFailedImport   = "build.failedImport"
	KeyBuildAdded          = "build.added"
	KeyBuildFailedAdd      = "build.failedAdd"
	KeyBuildRemoved        = "build.removed"
	KeyBuildFailedRemove   = "build.failedRemove"
	KeyConfirmClearOne     = "dialog.confirmClear2"
	KeyConfirmClearAll     = "dialog.confirmClear"
	KeyConfirmDeleteOne    = "dialog.deleteOffline"
	KeyConfirmDeleteAll    = "dialog.deleteAllOffline"
	KeyConfirmRemoveBuild  = "build.confirmRemove"
	KeyActionClear         = "common.clear"
	KeyActionClearOne      = "common.clear2"
	KeyActionDelete        = "common.delete"
	KeyActionDeleteOne     = "common.delete2"
	KeyActionRemoveCaches  = "cache.removeClearCaches"
)

var defaultTemplates = map[string]string{
	KeyGameCleared:         "Game cache for {name} cleared",
	KeyFailedClearGame:     "Failed to clear game cache for {name}: {error}",
	KeyOfflineDeleted:      "Offline cache for {name} deleted",
	KeyFailedDeleteOffline: "Failed to delete offline cache for {name}: {error}",
	KeyFailedKickoff:       "Failed to start offline cache download for {name}: {error}",
	KeyRepairStarted:       "Offline cache repair for {name} started",
	KeyFailedRepair:        "Failed to start offline cache repair for {name}: {error}",
	KeyFailedValidate:      "Failed to validate {side} cache for {name}: {error}",
	KeyBuildImported:       "Imported build {name}",
	KeyBuildFailedImport:   "Failed to import build: {error}",
	KeyBuildAdded:          "Added build {name}",
	KeyBuildFailedAdd:      "Failed to add build: {error}",
	KeyBuildRemoved:        "Removed build {name}",
	KeyBuildFailedRemove:   "Failed to remove build: {error}",
	KeyConfirmClearOne:     "Are you sure you want to clear the game cache for {name}?",
	KeyConfirmClearAll:     "Are you sure you want to clear all game caches?",
	KeyConfirmDeleteOne:    "Are you sure you want to delete the offline cache for {name}?",
	KeyConfirmDeleteAll:    "Are you sure you want to delete all offline caches?",
	KeyConfirmRemoveBuild:  "Remove build {name} and delete its caches?",
	KeyActionClear:         "Clear",
	KeyActionClearOne:      "Clear",
	KeyActionDelete:        "Delete",
	KeyActionDeleteOne:     "Delete",
	KeyActionRemoveCaches:  "Remove and clear caches",
}

// Params 是消息模板的占位符取值。
type Params map[string]string

// Render 用 params 填充 key 对应的默认模板；未知 key 原样返回。
func Render(key string, params Params) string {
	tmpl, ok := defaultTemplates[key]
	if !ok {
		return key
	}
	if len(params) == 0 {
		return tmpl
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names)*2)
	for _, name := range names {
		pairs = append(pairs, "{"+name+"}", params[name])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
