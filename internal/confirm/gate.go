package confirm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cachesync/cachesync/internal/dispatch"
	"github.com/cachesync/cachesync/internal/logging"
	"github.com/cachesync/cachesync/internal/notice"
	"github.com/cachesync/cachesync/internal/versions"
)

var (
	ErrUnknownAction   = errors.New("unknown confirmation action")
	ErrTargetRequired  = errors.New("confirmation action requires a version")
	ErrNoPendingPrompt = errors.New("no pending confirmation")
	ErrPromptMismatch  = errors.New("confirmation id does not match pending prompt")
)

// Commands 是被确认步骤包裹的 dispatcher 命令。
type Commands interface {
	ClearGame(ctx context.Context, versionID string) dispatch.Outcome
	DeleteOffline(ctx context.Context, versionID string) dispatch.Outcome
	ClearAllGame(ctx context.Context) []dispatch.Outcome
	DeleteAllOffline(ctx context.Context) []dispatch.Outcome
}

// Remover 负责移除版本（连同缓存）；可为空，此时 ActionRemoveBuild 不可用。
type Remover interface {
	RemoveVersion(ctx context.Context, versionID string, deleteCaches bool) error
}

// VersionLookup 提供目标版本的名称，用于生成提示语。
type VersionLookup interface {
	Lookup(versionID string) (versions.Version, bool)
}

// Prompt 是等待用户确认的请求。
type Prompt struct {
	ID          string `json:"id"`
	Action      Action `json:"action"`
	Target      string `json:"target,omitempty"`
	MessageKey  string `json:"message_key"`
	Message     string `json:"message"`
	ConfirmText string `json:"confirm_text"`
	Variant     string `json:"variant"`
}

// Result 是确认后实际执行的结果。
type Result struct {
	Prompt   Prompt             `json:"prompt"`
	Outcomes []dispatch.Outcome `json:"-"`
	Err      error              `json:"-"`
}

// Gate 在破坏性命令前插入确认步骤；除当前待确认请求外不持有任何状态。
type Gate struct {
	commands Commands
	remover  Remover
	versions VersionLookup
	logger   *logrus.Logger

	mu      sync.Mutex
	pending *Prompt
}

// NewGate 构建 Gate；remover 与 logger 可为空。
func NewGate(commands Commands, lookup VersionLookup, remover Remover, logger *logrus.Logger) *Gate {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Gate{
		commands: commands,
		remover:  remover,
		versions: lookup,
		logger:   logger,
	}
}

// Request 生成新的确认请求并替换之前未处理的请求。
func (g *Gate) Request(action Action, versionID string) (Prompt, error) {
	spec, ok := actionSpecs[action]
	if !ok {
		return Prompt{}, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	if action == ActionRemoveBuild && g.remover == nil {
		return Prompt{}, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	if spec.needsTarget && versionID == "" {
		return Prompt{}, ErrTargetRequired
	}
	if !spec.needsTarget {
		versionID = ""
	}

	var params notice.Params
	if spec.needsTarget {
		params = notice.Params{"name": g.promptLabel(action, versionID)}
	}
	prompt := Prompt{
		ID:          uuid.NewString(),
		Action:      action,
		Target:      versionID,
		MessageKey:  spec.messageKey,
		Message:     notice.Render(spec.messageKey, params),
		ConfirmText: notice.Render(spec.confirmKey, nil),
		Variant:     "danger",
	}

	g.mu.Lock()
	g.pending = &prompt
	g.mu.Unlock()

	g.logger.WithFields(logrus.Fields{
		"action":    "confirm_request",
		"prompt_id": prompt.ID,
		"command":   string(action),
		"version":   versionID,
	}).Debug("等待用户确认")
	return prompt, nil
}

// Pending 返回当前待确认请求。
func (g *Gate) Pending() (Prompt, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return Prompt{}, false
	}
	return *g.pending, true
}

// Confirm 在 id 与待确认请求匹配时执行对应命令。
func (g *Gate) Confirm(ctx context.Context, promptID string) (Result, error) {
	prompt, err := g.take(promptID)
	if err != nil {
		return Result{}, err
	}

	result := Result{Prompt: prompt}
	switch prompt.Action {
	case ActionClearGame:
		result.Outcomes = []dispatch.Outcome{g.commands.ClearGame(ctx, prompt.Target)}
	case ActionDeleteOffline:
		result.Outcomes = []dispatch.Outcome{g.commands.DeleteOffline(ctx, prompt.Target)}
	case ActionClearAllGame:
		result.Outcomes = g.commands.ClearAllGame(ctx)
	case ActionDeleteAllOffline:
		result.Outcomes = g.commands.DeleteAllOffline(ctx)
	case ActionRemoveBuild:
		result.Err = g.remover.RemoveVersion(ctx, prompt.Target, true)
	}

	g.logger.WithFields(logrus.Fields{
		"action":    "confirm_accept",
		"prompt_id": prompt.ID,
		"command":   string(prompt.Action),
		"version":   prompt.Target,
		"outcomes":  len(result.Outcomes),
	}).Info("用户已确认")
	return result, nil
}

// Decline 丢弃待确认请求，不调用 worker，也不修改任何状态。
func (g *Gate) Decline(promptID string) error {
	prompt, err := g.take(promptID)
	if err != nil {
		return err
	}
	g.logger.WithFields(logrus.Fields{
		"action":    "confirm_decline",
		"prompt_id": prompt.ID,
		"command":   string(prompt.Action),
	}).Info("用户已取消")
	return nil
}

func (g *Gate) take(promptID string) (Prompt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return Prompt{}, ErrNoPendingPrompt
	}
	if g.pending.ID != promptID {
		return Prompt{}, ErrPromptMismatch
	}
	prompt := *g.pending
	g.pending = nil
	return prompt, nil
}

// promptLabel 为提示语选择版本名：移除版本时与版本列表一致使用 name 或 id，
// 缓存操作缺少名称时使用 "version <id>"。
func (g *Gate) promptLabel(action Action, versionID string) string {
	v := versions.Version{ID: versionID}
	if g.versions != nil {
		if found, ok := g.versions.Lookup(versionID); ok {
			v = found
		}
	}
	if action == ActionRemoveBuild {
		return v.Label()
	}
	return v.PromptLabel()
}
