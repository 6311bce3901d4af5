package dispatch

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/cachesync/cachesync/internal/cachestate"
	"github.com/cachesync/cachesync/internal/notice"
)

type call struct {
	Op      string
	Version string
	Side    cachestate.Side
	Repair  bool
}

type fakeWorker struct {
	mu    sync.Mutex
	calls []call
	fail  map[string]error
}

func (w *fakeWorker) record(c call) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, c)
	return w.fail[c.Op+":"+c.Version]
}

func (w *fakeWorker) ValidateCache(_ context.Context, id string, side cachestate.Side) error {
	return w.record(call{Op: "validate", Version: id, Side: side})
}

func (w *fakeWorker) DownloadCache(_ context.Context, id string, side cachestate.Side, repair bool) error {
	return w.record(call{Op: "download", Version: id, Side: side, Repair: repair})
}

func (w *fakeWorker) DeleteCache(_ context.Context, id string, side cachestate.Side) error {
	return w.record(call{Op: "delete", Version: id, Side: side})
}

func (w *fakeWorker) deleted() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var ids []string
	for _, c := range w.calls {
		if c.Op == "delete" {
			ids = append(ids, c.Version)
		}
	}
	sort.Strings(ids)
	return ids
}

type labelMap map[string]string

func (m labelMap) Label(id string) string {
	if name, ok := m[id]; ok {
		return name
	}
	return id
}

type captured struct {
	level  notice.Level
	key    string
	params notice.Params
}

type captureReporter struct {
	mu    sync.Mutex
	items []captured
}

func (r *captureReporter) Success(key string, params notice.Params) {
	r.mu.Lock()
	r.items = append(r.items, captured{notice.LevelSuccess, key, params})
	r.mu.Unlock()
}

func (r *captureReporter) Failure(key string, params notice.Params) {
	r.mu.Lock()
	r.items = append(r.items, captured{notice.LevelError, key, params})
	r.mu.Unlock()
}

type fixture struct {
	worker   *fakeWorker
	store    *cachestate.Store
	reporter *captureReporter
	d        *Dispatcher
}

func newFixture() *fixture {
	f := &fixture{
		worker:   &fakeWorker{fail: map[string]error{}},
		store:    cachestate.NewStore(),
		reporter: &captureReporter{},
	}
	f.d = New(Options{
		Worker:   f.worker,
		Store:    f.store,
		Labels:   labelMap{"v1": "Beta"},
		Reporter: f.reporter,
	})
	return f
}

func present() cachestate.Items {
	return cachestate.Items{"a.pak": {Size: 1}}
}

func TestClearGameAppliesOptimisticState(t *testing.T) {
	f := newFixture()
	f.store.Merge(cachestate.ProgressEvent{VersionID: "v1", Done: true, Items: present()})

	out := f.d.ClearGame(context.Background(), "v1")
	if !out.OK() {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	rec, _ := f.store.Record("v1")
	if !rec.GameDone() || len(rec.GameItems()) != 0 {
		t.Fatalf("game side should be settled and empty, got %+v", rec.Side(cachestate.SideGame))
	}
	if len(f.reporter.items) != 1 || f.reporter.items[0].key != notice.KeyGameCleared || f.reporter.items[0].params["name"] != "Beta" {
		t.Fatalf("unexpected notices: %+v", f.reporter.items)
	}
}

func TestClearGameFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture()
	f.worker.fail["delete:v1"] = errors.New("file in use")
	f.store.Merge(cachestate.ProgressEvent{VersionID: "v1", Done: true, Items: present()})

	out := f.d.ClearGame(context.Background(), "v1")
	if out.OK() {
		t.Fatalf("expected failure outcome")
	}
	rec, _ := f.store.Record("v1")
	if len(rec.GameItems()) != 1 {
		t.Fatalf("failed command must not touch state")
	}
	got := f.reporter.items[0]
	if got.level != notice.LevelError || got.key != notice.KeyFailedClearGame {
		t.Fatalf("unexpected notice: %+v", got)
	}
	if got.params["name"] != "Beta" || got.params["error"] != "file in use" {
		t.Fatalf("failure should carry label and error text: %+v", got.params)
	}
}

func TestDeleteOfflineAppliesOptimisticState(t *testing.T) {
	f := newFixture()
	f.store.Merge(cachestate.ProgressEvent{VersionID: "v2", Offline: true, Done: true, Items: present()})

	f.d.DeleteOffline(context.Background(), "v2")
	rec, _ := f.store.Record("v2")
	if !rec.OfflineDone() || len(rec.OfflineItems()) != 0 {
		t.Fatalf("offline side should be cleared")
	}
	if f.reporter.items[0].params["name"] != "v2" {
		t.Fatalf("unnamed version should fall back to id")
	}
}

func TestDownloadOfflineMarksTransferStarted(t *testing.T) {
	f := newFixture()
	f.store.Merge(cachestate.ProgressEvent{VersionID: "v1", Offline: true, Done: true, Items: present()})

	out := f.d.DownloadOffline(context.Background(), "v1")
	if !out.OK() {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	rec, _ := f.store.Record("v1")
	if rec.OfflineDone() {
		t.Fatalf("offline side should be marked in progress")
	}
	if len(rec.OfflineItems()) != 1 {
		t.Fatalf("existing items should be kept")
	}
	if c := f.worker.calls[0]; c.Op != "download" || c.Side != cachestate.SideOffline || c.Repair {
		t.Fatalf("unexpected worker call: %+v", c)
	}
}

// racingStore 在 dispatcher 读取或写入记录之前并入一条新的进度事件，
// 模拟推送恰好落在命令返回与乐观更新之间。
type racingStore struct {
	*cachestate.Store
	event cachestate.ProgressEvent
}

func (s *racingStore) Record(versionID string) (cachestate.Record, bool) {
	rec, ok := s.Store.Record(versionID)
	s.Store.Merge(s.event)
	return rec, ok
}

func (s *racingStore) SetDone(versionID string, side cachestate.Side, done bool) bool {
	s.Store.Merge(s.event)
	return s.Store.SetDone(versionID, side, done)
}

func TestDownloadOfflineKeepsItemsFromConcurrentProgress(t *testing.T) {
	store := &racingStore{
		Store: cachestate.NewStore(),
		event: cachestate.ProgressEvent{VersionID: "v1", Offline: true, Items: cachestate.Items{"a.pak": {}, "b.pak": {}, "c.pak": {}}},
	}
	store.Merge(cachestate.ProgressEvent{VersionID: "v1", Offline: true, Done: true, Items: present()})
	d := New(Options{Worker: &fakeWorker{fail: map[string]error{}}, Store: store})

	if out := d.DownloadOffline(context.Background(), "v1"); !out.OK() {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	rec, _ := store.Store.Record("v1")
	if len(rec.OfflineItems()) != 3 {
		t.Fatalf("newer progress items must survive the optimistic update, got %d", len(rec.OfflineItems()))
	}
	if rec.OfflineDone() {
		t.Fatalf("offline side should stay in progress")
	}
}

func TestDownloadOfflineFailure(t *testing.T) {
	f := newFixture()
	f.worker.fail["download:v1"] = errors.New("no space")
	f.store.Merge(cachestate.ProgressEvent{VersionID: "v1", Offline: true, Done: true})

	f.d.DownloadOffline(context.Background(), "v1")
	rec, _ := f.store.Record("v1")
	if !rec.OfflineDone() {
		t.Fatalf("failed download must not change state")
	}
	if f.reporter.items[0].key != notice.KeyFailedKickoff {
		t.Fatalf("unexpected notice: %+v", f.reporter.items)
	}
}

func TestRepairOfflineKeepsState(t *testing.T) {
	f := newFixture()
	f.store.Merge(cachestate.ProgressEvent{VersionID: "v1", Offline: true, Done: true, Items: present()})

	f.d.RepairOffline(context.Background(), "v1")
	rec, _ := f.store.Record("v1")
	if !rec.OfflineDone() || len(rec.OfflineItems()) != 1 {
		t.Fatalf("repair must not change local state")
	}
	if c := f.worker.calls[0]; !c.Repair {
		t.Fatalf("repair flag should be sent: %+v", c)
	}
	if f.reporter.items[0].key != notice.KeyRepairStarted {
		t.Fatalf("repair should report start: %+v", f.reporter.items)
	}
}

func TestValidateHasNoLocalEffect(t *testing.T) {
	f := newFixture()
	f.store.EnsureTracked("v1")
	f.worker.fail["validate:v1"] = errors.New("timeout")

	out := f.d.Validate(context.Background(), "v1", cachestate.SideOffline)
	if out.OK() {
		t.Fatalf("expected validate failure")
	}
	rec, _ := f.store.Record("v1")
	if rec.OfflineDone() || rec.GameDone() {
		t.Fatalf("validate must not change state")
	}
	if f.reporter.items[0].params["side"] != "offline" {
		t.Fatalf("validate failure should name the side: %+v", f.reporter.items[0])
	}
}

func TestClearAllGameSelectsSettledNonEmpty(t *testing.T) {
	f := newFixture()
	f.store.Merge(cachestate.ProgressEvent{VersionID: "A", Done: true, Items: cachestate.Items{"x": {}}})
	f.store.Merge(cachestate.ProgressEvent{VersionID: "B", Done: false, Items: cachestate.Items{}})
	f.store.Merge(cachestate.ProgressEvent{VersionID: "C", Done: true, Items: cachestate.Items{}})

	outcomes := f.d.ClearAllGame(context.Background())
	if len(outcomes) != 1 || outcomes[0].VersionID != "A" {
		t.Fatalf("only A should be cleared, got %+v", outcomes)
	}
	if got := f.worker.deleted(); strings.Join(got, ",") != "A" {
		t.Fatalf("unexpected worker deletes: %v", got)
	}
}

func TestDeleteAllOfflineContinuesAfterFailure(t *testing.T) {
	f := newFixture()
	for _, id := range []string{"a", "b", "c"} {
		f.store.Merge(cachestate.ProgressEvent{VersionID: id, Offline: true, Done: true, Items: present()})
	}
	f.store.Merge(cachestate.ProgressEvent{VersionID: "game-only", Done: true, Items: present()})
	f.worker.fail["delete:b"] = errors.New("locked")

	outcomes := f.d.DeleteAllOffline(context.Background())
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if got := f.worker.deleted(); strings.Join(got, ",") != "a,b,c" {
		t.Fatalf("every target should be attempted, got %v", got)
	}

	for _, out := range outcomes {
		rec, _ := f.store.Record(out.VersionID)
		if out.VersionID == "b" {
			if out.OK() || len(rec.OfflineItems()) == 0 {
				t.Fatalf("failed target should keep its items")
			}
			continue
		}
		if !out.OK() || len(rec.OfflineItems()) != 0 {
			t.Fatalf("target %s should be cleared", out.VersionID)
		}
	}
}
