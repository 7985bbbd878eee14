package module

import (
	"fmt"
	"sort"
	"sync"
)

// Phase is the coarse ordering of events within a frame.
type Phase int

const (
	PreExecute Phase = iota
	Initialize
	Execute
)

func (p Phase) String() string {
	switch p {
	case PreExecute:
		return "pre-execute"
	case Initialize:
		return "initialize"
	case Execute:
		return "execute"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Built-in event names.
const (
	EventPrologue    = "Prologue"
	EventInitialize  = "Initialize"
	EventPrePhysics  = "PrePhysics"
	EventPostPhysics = "PostPhysics"
)

// EventDescriptor declares an event a program can handle. Bind runs in the
// binding pass after every unit of an instance exists; it may add
// prerequisites between units.
type EventDescriptor struct {
	Name  string
	Phase Phase
	Bind  func(u *TickUnit, inst *Instance)

	order int
}

var (
	catalogMu sync.RWMutex
	catalog   = map[string]EventDescriptor{}
)

func init() {
	RegisterEvent(EventDescriptor{Name: EventPrologue, Phase: PreExecute})
	RegisterEvent(EventDescriptor{Name: EventInitialize, Phase: Initialize})
	RegisterEvent(EventDescriptor{Name: EventPrePhysics, Phase: Execute})
	RegisterEvent(EventDescriptor{Name: EventPostPhysics, Phase: Execute})
}

// RegisterEvent adds an event to the process-wide catalog. It is meant to be
// called from init functions; registering a name twice panics.
func RegisterEvent(d EventDescriptor) {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	if _, ok := catalog[d.Name]; ok {
		panic(fmt.Sprintf("module: event '%s' already registered", d.Name))
	}
	d.order = len(catalog)
	catalog[d.Name] = d
}

// LookupEvent returns a catalog entry.
func LookupEvent(name string) (EventDescriptor, bool) {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	d, ok := catalog[name]
	return d, ok
}

// Events returns every catalog entry in registration order.
func Events() []EventDescriptor {
	catalogMu.RLock()
	out := make([]EventDescriptor, 0, len(catalog))
	for _, d := range catalog {
		out = append(out, d)
	}
	catalogMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].order < out[j].order })
	return out
}
