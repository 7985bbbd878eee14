/*
Package builder compiles the format-agnostic config model into runtime
artifacts. It is the bridge between the description loaders (the
'hcl_adapter' package) and the runtime ('graph' and 'module').

Graph compilation is a multi-phase process:

 1. Trait Resolution: every node's trait names are resolved through the
    trait catalog. Unknown names fail the build with the closest registered
    name as a suggestion.

 2. Value Translation: field values are turned into graphio values. Node
    names become logical indexes and latent expressions are collected into
    the graph's program table, sharing one slot per distinct source.

 3. Serialization: the node list goes through the two-pass graphio.Writer,
    and variables, interfaces and entry points are attached to the archive
    as side tables.

The resulting *graphio.Archive can be stored, or loaded straight away with
graph.Load. Module blocks compile into *module.Program values once their
graph is loaded.
*/
package builder
