package trait

import "sync"

var (
	staticMu sync.Mutex
	statics  []Descriptor

	defaultOnce sync.Once
	defaultReg  *Registry
)

// AutoRegister records a statically known trait. It is meant to be called
// from package init functions. Traits recorded before Default runs are
// registered when the process registry is created; later ones immediately.
func AutoRegister(d Descriptor) {
	staticMu.Lock()
	defer staticMu.Unlock()
	statics = append(statics, d)
	if defaultReg != nil {
		defaultReg.RegisterStatic(d)
	}
}

// Default returns the process-wide registry, creating it on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		staticMu.Lock()
		defer staticMu.Unlock()
		reg := NewRegistry()
		for _, d := range statics {
			reg.RegisterStatic(d)
		}
		defaultReg = reg
	})
	return defaultReg
}

// RegisterStatics registers every auto-registered trait into r. Applications
// that own their registry instead of using Default call it at startup.
func RegisterStatics(r *Registry) {
	staticMu.Lock()
	queued := append([]Descriptor(nil), statics...)
	staticMu.Unlock()
	for _, d := range queued {
		r.RegisterStatic(d)
	}
}
