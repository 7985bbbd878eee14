package nodetemplate

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/specialistvlad/traitgraph/internal/trait"
)

// DefaultArenaCapacity is the number of templates kept in the fixed arena.
const DefaultArenaCapacity = 256

// Registry deduplicates templates by the hash of their trait sequence.
type Registry struct {
	traits *trait.Registry

	mu       sync.RWMutex
	arena    []Template
	overflow []*Template
	byHash   map[uint32]*Template
}

// Option configures a Registry.
type Option func(*Registry)

// WithArenaCapacity sets how many templates live in the fixed arena before
// new ones are allocated individually.
func WithArenaCapacity(n int) Option {
	return func(r *Registry) {
		r.arena = make([]Template, 0, max(n, 0))
	}
}

// NewRegistry creates a template registry backed by a trait catalog. Cached
// templates referencing a trait are dropped when that trait is unregistered.
func NewRegistry(traits *trait.Registry, opts ...Option) *Registry {
	r := &Registry{
		traits: traits,
		arena:  make([]Template, 0, DefaultArenaCapacity),
		byHash: make(map[uint32]*Template),
	}
	for _, opt := range opts {
		opt(r)
	}
	traits.OnUnregister(r.purge)
	return r
}

// Traits returns the trait catalog the registry resolves UIDs against.
func (r *Registry) Traits() *trait.Registry { return r.traits }

// FindOrAdd returns the cached template for uids, building it on first use.
// Repeated calls with the same sequence return the same *Template.
func (r *Registry) FindOrAdd(uids []trait.UID) (*Template, error) {
	hash := Hash(uids)

	r.mu.RLock()
	tpl, ok := r.byHash[hash]
	r.mu.RUnlock()
	if ok {
		r.checkCollision(tpl, uids)
		return tpl, nil
	}

	built, err := Build(r.traits, uids)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.byHash[hash]; ok {
		r.checkCollision(tpl, uids)
		return tpl, nil
	}
	if len(r.arena) < cap(r.arena) {
		r.arena = append(r.arena, *built)
		tpl = &r.arena[len(r.arena)-1]
	} else {
		tpl = built
		r.overflow = append(r.overflow, tpl)
	}
	r.byHash[hash] = tpl
	return tpl, nil
}

func (r *Registry) checkCollision(tpl *Template, uids []trait.UID) {
	if !slices.Equal(tpl.UIDs(), uids) {
		panic(fmt.Sprintf("node template hash 0x%08x collides for %v and %v", tpl.UID, tpl.UIDs(), uids))
	}
}

// Find looks a template up by hash.
func (r *Registry) Find(hash uint32) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl, ok := r.byHash[hash]
	return tpl, ok
}

// FindByUIDs looks a template up by its trait sequence without building it.
func (r *Registry) FindByUIDs(uids []trait.UID) (*Template, bool) {
	tpl, ok := r.Find(Hash(uids))
	if !ok || !slices.Equal(tpl.UIDs(), uids) {
		return nil, false
	}
	return tpl, true
}

// Len returns the number of cached templates.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byHash)
}

// List returns the cached templates ordered by hash.
func (r *Registry) List() []*Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Template, 0, len(r.byHash))
	for _, tpl := range r.byHash {
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// purge forgets templates that contain uid. Arena slots are not reused.
func (r *Registry) purge(uid trait.UID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for hash, tpl := range r.byHash {
		if slices.Contains(tpl.UIDs(), uid) {
			delete(r.byHash, hash)
		}
	}
}
