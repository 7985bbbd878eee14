// Package graph turns a compiled graph archive into runtime instances.
//
// A Graph is the immutable, shareable form of one compiled graph: its
// shared-data buffer, entry points, variables, data interfaces and latent
// programs. Any number of Instances can be allocated from it concurrently.
// Each Instance owns the per-node instance data reachable from its entry
// point, a block of variable cells snapshotted from the graph defaults, and
// (on the root instance of a tree) a map of components.
//
// # Variable binding
//
// Variables that belong to a data interface are public. An instance with
// public variables starts Unbound, reading its own cells. BindPublicVariables
// repoints slots at the cells of a host implementing the same interface: the
// natural host (the owning module instance or parent graph instance) matched
// by interface name, then any explicit hosts matched by variable name.
// UnbindPublicVariables restores the instance's own cells. Mismatched hosts are
// logged and skipped.
//
// # Freezing
//
// An instance is Live or FrozenPendingThaw. While frozen, Update is refused
// and latent properties tagged freezable keep their last value.
package graph
