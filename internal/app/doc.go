// Package app contains the core application logic. It wires the trait
// catalog, the graph store, the module scheduler and the diagnostics server
// together and drives the frame loop, decoupled from any specific entrypoint
// like a CLI or server.
package app
