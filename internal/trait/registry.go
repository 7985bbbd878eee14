package trait

import (
	"fmt"
	"sort"
	"sync"

	"github.com/agext/levenshtein"
)

// DefaultArenaBytes is the budget of the static trait arena.
const DefaultArenaBytes = 8 * 1024

// staticSlotBytes is the footprint charged per static trait in the arena.
const staticSlotBytes = 64

// Handle locates a registered trait. Non-negative values index the static
// arena; negative values index the dynamic table.
type Handle int32

// InvalidHandle is returned for traits that are not registered.
const InvalidHandle Handle = -1 << 31

// IsStatic reports whether the trait lives in the static arena.
func (h Handle) IsStatic() bool { return h >= 0 }

func dynamicHandle(idx int) Handle { return Handle(-(idx + 1)) }
func (h Handle) dynamicIndex() int { return int(-h) - 1 }

// dynamicEntry is an individually allocated trait.
type dynamicEntry struct {
	desc Descriptor
	// static marks arena overflow; such entries cannot be unregistered.
	static bool
}

// Registry catalogs trait descriptors by UID and name.
type Registry struct {
	mu sync.RWMutex

	arena   []Descriptor
	dynamic []*dynamicEntry
	free    []int

	byUID  map[UID]Handle
	byName map[string]UID
	refs   map[UID]int

	unregisterHooks []func(UID)
}

// Option configures a Registry.
type Option func(*Registry)

// WithArenaBytes sets the byte budget of the static arena.
func WithArenaBytes(n int) Option {
	return func(r *Registry) {
		slots := n / staticSlotBytes
		if slots < 0 {
			slots = 0
		}
		r.arena = make([]Descriptor, 0, slots)
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		arena:  make([]Descriptor, 0, DefaultArenaBytes/staticSlotBytes),
		byUID:  make(map[UID]Handle),
		byName: make(map[string]UID),
		refs:   make(map[UID]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ArenaCapacity returns how many static traits fit in the arena.
func (r *Registry) ArenaCapacity() int { return cap(r.arena) }

// RegisterStatic registers a trait that lives for the registry's lifetime.
// It is placed in the arena while there is room.
func (r *Registry) RegisterStatic(d Descriptor) Handle {
	return r.register(d, true)
}

// Register registers a dynamic trait owned by a plug-in.
func (r *Registry) Register(d Descriptor) Handle {
	return r.register(d, false)
}

func (r *Registry) register(d Descriptor, static bool) Handle {
	if err := d.prepare(); err != nil {
		panic(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.byUID[d.UID]; ok {
		existing := r.get(h)
		if existing.sameAs(&d) {
			return h
		}
		panic(fmt.Sprintf("trait '%s' already registered with uid %s", existing.Name, d.UID))
	}
	if other, ok := r.byName[d.Name]; ok {
		panic(fmt.Sprintf("trait '%s' already registered with uid %s", d.Name, other))
	}

	var h Handle
	if static && len(r.arena) < cap(r.arena) {
		r.arena = append(r.arena, d)
		h = Handle(len(r.arena) - 1)
	} else {
		entry := &dynamicEntry{desc: d, static: static}
		if n := len(r.free); n > 0 {
			idx := r.free[n-1]
			r.free = r.free[:n-1]
			r.dynamic[idx] = entry
			h = dynamicHandle(idx)
		} else {
			r.dynamic = append(r.dynamic, entry)
			h = dynamicHandle(len(r.dynamic) - 1)
		}
	}
	r.byUID[d.UID] = h
	r.byName[d.Name] = d.UID
	return h
}

// Unregister removes a dynamic trait. Removing a static trait or a trait
// still referenced by a live compiled graph is an integrity violation.
func (r *Registry) Unregister(uid UID) {
	r.mu.Lock()
	h, ok := r.byUID[uid]
	if !ok {
		r.mu.Unlock()
		return
	}
	if n := r.refs[uid]; n > 0 {
		r.mu.Unlock()
		panic(fmt.Sprintf("trait %s unregistered while referenced by %d compiled graph(s)", uid, n))
	}
	if h.IsStatic() || r.dynamic[h.dynamicIndex()].static {
		r.mu.Unlock()
		panic(fmt.Sprintf("trait %s is static and cannot be unregistered", uid))
	}
	idx := h.dynamicIndex()
	delete(r.byName, r.dynamic[idx].desc.Name)
	delete(r.byUID, uid)
	r.dynamic[idx] = nil
	r.free = append(r.free, idx)
	hooks := append([]func(UID){}, r.unregisterHooks...)
	r.mu.Unlock()

	for _, hook := range hooks {
		hook(uid)
	}
}

// OnUnregister installs a callback run after a trait is removed. Caches keyed
// on trait layouts use it to drop stale entries.
func (r *Registry) OnUnregister(fn func(UID)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregisterHooks = append(r.unregisterHooks, fn)
}

// Retain records that a compiled graph references each of the given traits.
func (r *Registry) Retain(uids ...UID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, uid := range uids {
		r.refs[uid]++
	}
}

// Release drops references taken with Retain.
func (r *Registry) Release(uids ...UID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, uid := range uids {
		if r.refs[uid] <= 1 {
			delete(r.refs, uid)
			continue
		}
		r.refs[uid]--
	}
}

// Find looks a trait up by UID.
func (r *Registry) Find(uid UID) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byUID[uid]
	if !ok {
		return nil, false
	}
	return r.get(h), true
}

// FindByName looks a trait up by name.
func (r *Registry) FindByName(name string) (*Descriptor, bool) {
	r.mu.RLock()
	uid, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return r.Find(uid)
}

// Handle returns where a trait is stored.
func (r *Registry) Handle(uid UID) Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.byUID[uid]; ok {
		return h
	}
	return InvalidHandle
}

// List returns every registered trait ordered by UID.
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, 0, len(r.byUID))
	for _, h := range r.byUID {
		out = append(out, r.get(h))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// Len returns the number of registered traits.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUID)
}

// Suggest returns the registered name closest to name, or "" when nothing is
// reasonably close.
func (r *Registry) Suggest(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	best, bestDist := "", len(name)/2+2
	for candidate := range r.byName {
		if d := levenshtein.Distance(name, candidate, nil); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}

func (r *Registry) get(h Handle) *Descriptor {
	if h.IsStatic() {
		return &r.arena[h]
	}
	return &r.dynamic[h.dynamicIndex()].desc
}
