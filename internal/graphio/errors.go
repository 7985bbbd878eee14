package graphio

import (
	"errors"
	"fmt"
)

var (
	// ErrGraphTooLarge is returned when the shared data does not fit the
	// handle encoding.
	ErrGraphTooLarge = errors.New("graph shared data too large")
	// ErrNodeSharedDataTooLarge is returned when one node's shared data
	// exceeds MaxNodeSharedDataSize.
	ErrNodeSharedDataTooLarge = errors.New("node shared data too large")
	// ErrNodeInstanceDataTooLarge is returned when one node's instance data
	// exceeds MaxNodeInstanceDataSize.
	ErrNodeInstanceDataTooLarge = errors.New("node instance data too large")
	// ErrUnresolvedNode is returned for references to nodes or traits that do
	// not exist.
	ErrUnresolvedNode = errors.New("unresolved node reference")
	// ErrUnknownField is returned when a value targets a field the trait does
	// not declare.
	ErrUnknownField = errors.New("unknown trait field")
	// ErrCorruptStream is returned when a persisted stream cannot be parsed.
	ErrCorruptStream = errors.New("corrupt graph stream")
)

// IsCapacityError reports whether err is one of the size limit violations.
// Such graphs load as empty rather than failing the caller.
func IsCapacityError(err error) bool {
	return errors.Is(err, ErrGraphTooLarge) ||
		errors.Is(err, ErrNodeSharedDataTooLarge) ||
		errors.Is(err, ErrNodeInstanceDataTooLarge)
}

// LayoutError reports a size violation at a specific node.
type LayoutError struct {
	Node  int
	Size  uint64
	Limit uint64
	Err   error
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("node %d: %v (%d > %d)", e.Node, e.Err, e.Size, e.Limit)
}

func (e *LayoutError) Unwrap() error { return e.Err }
