package trait

// Mode describes how a trait composes with the traits below it in a node.
type Mode uint8

const (
	// ModeBase traits start a node's trait stack.
	ModeBase Mode = iota
	// ModeAdditive traits decorate the base trait beneath them.
	ModeAdditive
)

func (m Mode) String() string {
	switch m {
	case ModeBase:
		return "base"
	case ModeAdditive:
		return "additive"
	default:
		return "unknown"
	}
}
