package cachestate

import "sync"

// ChangeFunc 在记录变更后被调用，参数是变更后的记录副本。
type ChangeFunc func(Record)

// Store 以 versionID 为键保存 Record，每个版本至多一条记录。
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string

	subMu     sync.RWMutex
	listeners []ChangeFunc
}

// NewStore 创建空的状态仓库。
func NewStore() *Store {
	return &Store{records: make(map[string]*Record)}
}

// EnsureTracked 在记录不存在时创建一条两侧均未完成、条目为空的记录。
// 返回值表示本次调用是否新建了记录；重复调用是空操作。
func (s *Store) EnsureTracked(versionID string) bool {
	s.mu.Lock()
	if _, ok := s.records[versionID]; ok {
		s.mu.Unlock()
		return false
	}
	rec := s.trackLocked(versionID)
	snapshot := rec.clone()
	s.mu.Unlock()

	s.notify(snapshot)
	return true
}

// Merge 将进度事件整体替换到对应侧；未追踪的版本会被隐式创建。
// 不做任何乱序检测，后到者覆盖先到者。
func (s *Store) Merge(event ProgressEvent) {
	s.mu.Lock()
	rec, ok := s.records[event.VersionID]
	if !ok {
		rec = s.trackLocked(event.VersionID)
	}
	rec.set(event.Side(), event.Items, event.Done)
	snapshot := rec.clone()
	s.mu.Unlock()

	s.notify(snapshot)
}

// ApplyOptimistic 与 Merge 语义相同，但只作用于已追踪的版本；
// 返回 false 表示版本未被追踪，状态未改变。
func (s *Store) ApplyOptimistic(versionID string, side Side, items Items, done bool) bool {
	s.mu.Lock()
	rec, ok := s.records[versionID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	rec.set(side, items, done)
	snapshot := rec.clone()
	s.mu.Unlock()

	s.notify(snapshot)
	return true
}

// SetDone 只改写某一侧的 done 标记，条目保持锁内的当前值；
// 返回 false 表示版本未被追踪。
func (s *Store) SetDone(versionID string, side Side, done bool) bool {
	s.mu.Lock()
	rec, ok := s.records[versionID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	rec.sides[side].Done = done
	snapshot := rec.clone()
	s.mu.Unlock()

	s.notify(snapshot)
	return true
}

// Record 返回单个版本记录的副本。
func (s *Store) Record(versionID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[versionID]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// Snapshot 按首次追踪顺序返回所有记录的只读副本。
func (s *Store) Snapshot() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.records[id].clone())
	}
	return result
}

// Len 返回当前追踪的版本数量。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Reset 丢弃全部记录，用于视图失活。
func (s *Store) Reset() {
	s.mu.Lock()
	s.records = make(map[string]*Record)
	s.order = nil
	s.mu.Unlock()
}

// Subscribe 注册变更回调，返回的函数用于取消注册。
func (s *Store) Subscribe(fn ChangeFunc) func() {
	if fn == nil {
		return func() {}
	}
	s.subMu.Lock()
	s.listeners = append(s.listeners, fn)
	idx := len(s.listeners) - 1
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			s.listeners[idx] = nil
			s.subMu.Unlock()
		})
	}
}

func (s *Store) trackLocked(versionID string) *Record {
	rec := newRecord(versionID)
	s.records[versionID] = rec
	s.order = append(s.order, versionID)
	return rec
}

func (s *Store) notify(rec Record) {
	s.subMu.RLock()
	listeners := make([]ChangeFunc, 0, len(s.listeners))
	for _, fn := range s.listeners {
		if fn != nil {
			listeners = append(listeners, fn)
		}
	}
	s.subMu.RUnlock()

	for _, fn := range listeners {
		fn(rec)
	}
}
