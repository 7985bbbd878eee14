// Package trait is the catalog of trait types known to the runtime.
//
// A trait is a typed chunk of shared (compile-time) data, an optional chunk of
// per-instance data and a set of capability interfaces it implements. Traits
// carry no state of their own: every call receives a Binding that points at
// the memory of the node the trait belongs to.
//
// The catalog is process-wide. Statically known traits announce themselves
// from package init functions through AutoRegister and are packed into a
// fixed-capacity arena when Default is first called. Plug-ins loaded later
// register and unregister dynamic traits explicitly.
package trait
