// Package graphio writes and reads the binary form of a compiled graph.
//
// The in-memory form is the shared-data buffer: node descriptions laid out
// back to back, each a 16-byte header followed by the node template's shared
// data, with every handle already resolved to a byte offset. The persisted
// form is a stream that stores the same data with handles as logical node
// indices, so it can be rebuilt on any host. Writer produces both; Reader
// rebuilds the buffer from the stream.
package graphio
