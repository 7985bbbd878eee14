package graph

// ComponentType identifies a component kind attached to a graph instance
// tree. Name must be unique per type.
type ComponentType[T any] struct {
	Name string
	New  func() *T
}

// GetOrAddComponent returns the tree's component of type ct, creating it on
// first use. Components live on the root instance; lookups through any
// instance of the tree reach the same value.
func GetOrAddComponent[T any](inst *Instance, ct ComponentType[T]) *T {
	root := inst.root
	if root == nil || root.isReleased() {
		panic("graph: component '" + ct.Name + "' requested from a released graph instance")
	}
	root.compMu.Lock()
	defer root.compMu.Unlock()
	if root.components == nil {
		root.components = make(map[string]any)
	}
	if c, ok := root.components[ct.Name]; ok {
		return c.(*T)
	}
	var c *T
	if ct.New != nil {
		c = ct.New()
	} else {
		c = new(T)
	}
	root.components[ct.Name] = c
	return c
}

// TryGetComponent returns the tree's component of type ct if present.
func TryGetComponent[T any](inst *Instance, ct ComponentType[T]) (*T, bool) {
	root := inst.root
	if root == nil {
		return nil, false
	}
	root.compMu.Lock()
	defer root.compMu.Unlock()
	c, ok := root.components[ct.Name]
	if !ok {
		return nil, false
	}
	return c.(*T), true
}
