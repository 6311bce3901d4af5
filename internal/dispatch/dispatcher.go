package dispatch

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"

	"github.com/cachesync/cachesync/internal/cachestate"
	"github.com/cachesync/cachesync/internal/logging"
	"github.com/cachesync/cachesync/internal/notice"
)

// Worker 是外部缓存 worker 的命令契约。
type Worker interface {
	ValidateCache(ctx context.Context, versionID string, side cachestate.Side) error
	DownloadCache(ctx context.Context, versionID string, side cachestate.Side, repair bool) error
	DeleteCache(ctx context.Context, versionID string, side cachestate.Side) error
}

// StateStore 是 dispatcher 需要的状态仓库能力子集。
type StateStore interface {
	Snapshot() []cachestate.Record
	Record(versionID string) (cachestate.Record, bool)
	ApplyOptimistic(versionID string, side cachestate.Side, items cachestate.Items, done bool) bool
	SetDone(versionID string, side cachestate.Side, done bool) bool
}

// Labeler 将版本 ID 映射为展示名。
type Labeler interface {
	Label(versionID string) string
}

// Command 标识一次缓存命令。
type Command string

const (
	CommandValidate        Command = "validate"
	CommandDownloadOffline Command = "download_offline"
	CommandRepairOffline   Command = "repair_offline"
	CommandClearGame       Command = "clear_game"
	CommandDeleteOffline   Command = "delete_offline"
)

// Outcome 是命令执行结果；Err 非空表示 worker 调用失败，本地状态未改变。
type Outcome struct {
	VersionID string
	Command   Command
	Side      cachestate.Side
	Err       error
}

// OK 表示命令成功。
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Dispatcher 把用户意图翻译为 worker 命令，并在成功后立即写入乐观状态。
// 所有失败都在此处转换为 Outcome + 通知，不会继续向上抛出。
type Dispatcher struct {
	worker   Worker
	store    StateStore
	labels   Labeler
	reporter notice.Reporter
	logger   *logrus.Logger
}

// Options 汇总 Dispatcher 的依赖；Labels/Reporter/Logger 可为空。
type Options struct {
	Worker   Worker
	Store    StateStore
	Labels   Labeler
	Reporter notice.Reporter
	Logger   *logrus.Logger
}

// New 构建 Dispatcher。
func New(opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Dispatcher{
		worker:   opts.Worker,
		store:    opts.Store,
		labels:   opts.Labels,
		reporter: opts.Reporter,
		logger:   logger,
	}
}

// Validate 请求 worker 重新检查某一侧缓存，没有本地乐观效果。
func (d *Dispatcher) Validate(ctx context.Context, versionID string, side cachestate.Side) Outcome {
	out := Outcome{VersionID: versionID, Command: CommandValidate, Side: side}
	out.Err = d.worker.ValidateCache(ctx, versionID, side)
	d.log(out)
	if out.Err != nil {
		d.failure(notice.KeyFailedValidate, versionID, out.Err, notice.Params{"side": side.String()})
	}
	return out
}

// DownloadOffline 启动离线缓存下载，成功后保留现有条目并将离线侧标记为进行中。
func (d *Dispatcher) DownloadOffline(ctx context.Context, versionID string) Outcome {
	out := Outcome{VersionID: versionID, Command: CommandDownloadOffline, Side: cachestate.SideOffline}
	out.Err = d.worker.DownloadCache(ctx, versionID, cachestate.SideOffline, false)
	d.log(out)
	if out.Err != nil {
		d.failure(notice.KeyFailedKickoff, versionID, out.Err, nil)
		return out
	}

	d.store.SetDone(versionID, cachestate.SideOffline, false)
	return out
}

// RepairOffline 触发离线缓存的强制校验修复；不改变本地状态。
func (d *Dispatcher) RepairOffline(ctx context.Context, versionID string) Outcome {
	out := Outcome{VersionID: versionID, Command: CommandRepairOffline, Side: cachestate.SideOffline}
	out.Err = d.worker.DownloadCache(ctx, versionID, cachestate.SideOffline, true)
	d.log(out)
	if out.Err != nil {
		d.failure(notice.KeyFailedRepair, versionID, out.Err, nil)
		return out
	}
	d.success(notice.KeyRepairStarted, versionID)
	return out
}

// ClearGame 删除游戏侧缓存，成功后立即写入 {items:{}, done:true}。
func (d *Dispatcher) ClearGame(ctx context.Context, versionID string) Outcome {
	return d.deleteSide(ctx, versionID, cachestate.SideGame, CommandClearGame,
		notice.KeyGameCleared, notice.KeyFailedClearGame)
}

// DeleteOffline 删除离线侧缓存，成功后立即写入 {items:{}, done:true}。
func (d *Dispatcher) DeleteOffline(ctx context.Context, versionID string) Outcome {
	return d.deleteSide(ctx, versionID, cachestate.SideOffline, CommandDeleteOffline,
		notice.KeyOfflineDeleted, notice.KeyFailedDeleteOffline)
}

// ClearAllGame 对所有“已稳定且非空”的游戏侧缓存并发执行 ClearGame。
func (d *Dispatcher) ClearAllGame(ctx context.Context) []Outcome {
	return d.bulk(ctx, cachestate.SideGame, d.ClearGame)
}

// DeleteAllOffline 对所有“已稳定且非空”的离线侧缓存并发执行 DeleteOffline。
func (d *Dispatcher) DeleteAllOffline(ctx context.Context) []Outcome {
	return d.bulk(ctx, cachestate.SideOffline, d.DeleteOffline)
}

// Targets 返回批量命令在当前快照下会作用的版本。
func (d *Dispatcher) Targets(side cachestate.Side) []string {
	var ids []string
	for _, rec := range d.store.Snapshot() {
		if rec.Side(side).Present() {
			ids = append(ids, rec.VersionID)
		}
	}
	return ids
}

func (d *Dispatcher) deleteSide(ctx context.Context, versionID string, side cachestate.Side, cmd Command, okKey, failKey string) Outcome {
	out := Outcome{VersionID: versionID, Command: cmd, Side: side}
	out.Err = d.worker.DeleteCache(ctx, versionID, side)
	d.log(out)
	if out.Err != nil {
		d.failure(failKey, versionID, out.Err, nil)
		return out
	}
	d.store.ApplyOptimistic(versionID, side, cachestate.Items{}, true)
	d.success(okKey, versionID)
	return out
}

// bulk 中每个子命令独立成功或失败，单个失败不会中止其余目标。
func (d *Dispatcher) bulk(ctx context.Context, side cachestate.Side, run func(context.Context, string) Outcome) []Outcome {
	targets := d.Targets(side)
	outcomes := make([]Outcome, len(targets))

	var wg conc.WaitGroup
	for i, id := range targets {
		i, id := i, id
		wg.Go(func() {
			outcomes[i] = run(ctx, id)
		})
	}
	wg.Wait()

	failed := 0
	for _, out := range outcomes {
		if !out.OK() {
			failed++
		}
	}
	d.logger.WithFields(logrus.Fields{
		"action":  "cache_bulk",
		"side":    side.String(),
		"targets": len(targets),
		"failed":  failed,
	}).Info("批量缓存命令完成")
	return outcomes
}

func (d *Dispatcher) label(versionID string) string {
	if d.labels == nil {
		return versionID
	}
	return d.labels.Label(versionID)
}

func (d *Dispatcher) success(key, versionID string) {
	if d.reporter != nil {
		d.reporter.Success(key, notice.Params{"name": d.label(versionID)})
	}
}

func (d *Dispatcher) failure(key, versionID string, err error, extra notice.Params) {
	if d.reporter == nil {
		return
	}
	params := notice.Params{"name": d.label(versionID), "error": err.Error()}
	for k, v := range extra {
		params[k] = v
	}
	d.reporter.Failure(key, params)
}

func (d *Dispatcher) log(out Outcome) {
	entry := d.logger.WithFields(logging.CommandFields(string(out.Command), out.VersionID, out.Side.String()))
	if out.Err != nil {
		entry.WithError(out.Err).Warn("cache_command_failed")
		return
	}
	entry.Debug("cache_command_sent")
}
