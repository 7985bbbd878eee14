// Package module schedules the per-frame work of module instances.
//
// A Program names a compiled graph and the events it handles. An Instance
// runs one program for one host object: Initialize discovers the program's
// events in the event catalog, orders them by phase, creates one TickUnit per
// event plus an end unit, and registers them with the frame executor. The
// Manager owns a generation-checked pool of instances and applies structural
// changes (register, unregister, enable) only at Flush, once per frame.
package module
