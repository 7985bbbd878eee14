// Package executor runs one frame of tick units.
//
// Units are registered once and kept until unregistered. Each frame the
// executor orders them with a dag (an edge from every prerequisite to its
// dependent), seeds a ready channel with the units that have no pending
// prerequisites and lets a fixed pool of workers drain it. Completing a unit
// atomically decrements its dependents' counters and enqueues the ones that
// reach zero. Disabled units complete without running. A failed unit skips
// everything downstream of it; unrelated units still run, and the frame
// returns the first root-cause error.
package executor
