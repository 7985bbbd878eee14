package module

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/traitgraph/internal/ctxlog"
	"github.com/specialistvlad/traitgraph/internal/executor"
)

// Handle refers to an instance in a Manager's pool. A handle goes stale
// when its slot is recycled; the zero Handle is never valid.
type Handle struct {
	Index      uint32
	Generation uint32
}

// IsValid reports whether h was ever issued.
func (h Handle) IsValid() bool { return h.Generation != 0 }

func (h Handle) String() string { return fmt.Sprintf("%d:%d", h.Index, h.Generation) }

// Observer receives manager-level measurements.
type Observer interface {
	InstancesChanged(n int)
	TaskDropped(event string)
	InputEventsQueued(n int)
}

type slot struct {
	generation uint32
	inst       *Instance
}

type actionKind int

const (
	actRegister actionKind = iota
	actUnregister
	actEnable
)

type action struct {
	kind    actionKind
	handle  Handle
	enabled bool
}

// Manager owns module instances and drives frames. Register, Unregister and
// Enable requests are queued and applied together at Flush; task and input
// event queueing take effect immediately.
type Manager struct {
	exec     *executor.Executor
	logger   *slog.Logger
	observer Observer

	poolMu sync.RWMutex
	slots  []slot
	free   []uint32
	live   int

	actionsMu sync.Mutex
	actions   []action

	main  *taskQueue
	frame atomic.Uint64
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerObserver reports pool and queue activity to o.
func WithManagerObserver(o Observer) ManagerOption {
	return func(m *Manager) { m.observer = o }
}

// NewManager creates a manager running frames on exec.
func NewManager(ctx context.Context, exec *executor.Executor, opts ...ManagerOption) *Manager {
	m := &Manager{
		exec:   exec,
		logger: ctxlog.FromContext(ctx).With("component", "module_manager"),
		main:   newTaskQueue(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register implements Scheduler.
func (m *Manager) Register(u executor.Unit) error { return m.exec.Register(u) }

// Unregister implements Scheduler.
func (m *Manager) Unregister(id string) { m.exec.Unregister(id) }

// PostMain implements Scheduler. Tasks run on the goroutine calling Tick,
// after the frame.
func (m *Manager) PostMain(t Task) { m.main.push(t) }

// RegisterHandle places inst in the pool and schedules its initialization
// for the next Flush.
func (m *Manager) RegisterHandle(inst *Instance) Handle {
	m.poolMu.Lock()
	var h Handle
	if n := len(m.free); n > 0 {
		idx := m.free[n-1]
		m.free = m.free[:n-1]
		s := &m.slots[idx]
		s.inst = inst
		h = Handle{Index: idx, Generation: s.generation}
	} else {
		m.slots = append(m.slots, slot{generation: 1, inst: inst})
		h = Handle{Index: uint32(len(m.slots) - 1), Generation: 1}
	}
	m.poolMu.Unlock()

	m.enqueue(action{kind: actRegister, handle: h})
	return h
}

// UnregisterHandle schedules the release of h's instance for the next Flush.
func (m *Manager) UnregisterHandle(h Handle) {
	m.enqueue(action{kind: actUnregister, handle: h})
}

// EnableHandle schedules Enable on h's instance for the next Flush.
func (m *Manager) EnableHandle(h Handle, enabled bool) {
	m.enqueue(action{kind: actEnable, handle: h, enabled: enabled})
}

func (m *Manager) enqueue(a action) {
	m.actionsMu.Lock()
	m.actions = append(m.actions, a)
	m.actionsMu.Unlock()
}

// Instance resolves h. Stale and unknown handles return false.
func (m *Manager) Instance(h Handle) (*Instance, bool) {
	m.poolMu.RLock()
	defer m.poolMu.RUnlock()
	if !h.IsValid() || int(h.Index) >= len(m.slots) {
		return nil, false
	}
	s := m.slots[h.Index]
	if s.generation != h.Generation || s.inst == nil {
		return nil, false
	}
	return s.inst, true
}

// QueueTaskHandle queues t on an event unit of h's instance. Stale handles
// and unknown events are logged and the task dropped.
func (m *Manager) QueueTaskHandle(h Handle, event string, t Task, o TaskOrder) bool {
	inst, ok := m.Instance(h)
	if !ok {
		m.logger.Warn("Task queued on a stale module handle, dropped.", "handle", h.String(), "event", event)
		m.dropped(event)
		return false
	}
	if !inst.QueueTask(event, t, o) {
		m.dropped(event)
		return false
	}
	return true
}

func (m *Manager) dropped(event string) {
	if m.observer != nil {
		m.observer.TaskDropped(event)
	}
}

// QueueInputEventHandle queues ev on h's instance.
func (m *Manager) QueueInputEventHandle(h Handle, ev InputEvent) bool {
	inst, ok := m.Instance(h)
	if !ok {
		m.logger.Warn("Input event queued on a stale module handle, dropped.", "handle", h.String())
		return false
	}
	inst.QueueInputEvent(ev)
	if m.observer != nil {
		m.observer.InputEventsQueued(1)
	}
	return true
}

// Len returns the number of live instances.
func (m *Manager) Len() int {
	m.poolMu.RLock()
	defer m.poolMu.RUnlock()
	return m.live
}

// Frame returns the number of frames run so far.
func (m *Manager) Frame() uint64 { return m.frame.Load() }

// Flush applies queued structural changes in the order they were made.
// Initialization failures are logged and the slot is recycled.
func (m *Manager) Flush(ctx context.Context) {
	m.actionsMu.Lock()
	pending := m.actions
	m.actions = nil
	m.actionsMu.Unlock()

	for _, a := range pending {
		inst, ok := m.Instance(a.handle)
		if !ok {
			m.logger.Warn("Deferred module action on a stale handle, skipped.", "handle", a.handle.String())
			continue
		}
		switch a.kind {
		case actRegister:
			if err := inst.Initialize(ctx, m); err != nil {
				m.logger.Error("Module instance failed to initialize.", "module", inst.Name(), "error", err)
				m.recycle(a.handle)
				continue
			}
			m.poolMu.Lock()
			m.live++
			m.poolMu.Unlock()
		case actUnregister:
			wasLive := inst.RunState() != None
			inst.Release()
			m.recycle(a.handle)
			if wasLive {
				m.poolMu.Lock()
				m.live--
				m.poolMu.Unlock()
			}
		case actEnable:
			state := inst.RunState()
			if state == None || state == CreatingTasks || state == BindingTasks {
				m.logger.Warn("Enable requested on an uninitialized module, skipped.", "module", inst.Name())
				continue
			}
			inst.Enable(a.enabled)
		}
	}
	if len(pending) > 0 && m.observer != nil {
		m.observer.InstancesChanged(m.Len())
	}
}

func (m *Manager) recycle(h Handle) {
	m.poolMu.Lock()
	defer m.poolMu.Unlock()
	s := &m.slots[h.Index]
	s.inst = nil
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	m.free = append(m.free, h.Index)
}

// Tick flushes pending changes, runs one frame and drains the main-thread
// queue. The frame's error is returned after the queue has been drained.
func (m *Manager) Tick(ctx context.Context, dt float64) error {
	m.Flush(ctx)
	n := m.frame.Add(1)
	err := m.exec.RunFrame(withFrame(ctx, frameInfo{number: n, dt: dt}))
	m.main.drain(ctx)
	return err
}

// Shutdown releases every live instance immediately.
func (m *Manager) Shutdown(ctx context.Context) {
	m.Flush(ctx)
	m.poolMu.RLock()
	var handles []Handle
	for i, s := range m.slots {
		if s.inst != nil {
			handles = append(handles, Handle{Index: uint32(i), Generation: s.generation})
		}
	}
	m.poolMu.RUnlock()
	for _, h := range handles {
		m.UnregisterHandle(h)
	}
	m.Flush(ctx)
}
