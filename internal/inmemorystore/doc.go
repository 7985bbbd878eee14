// Package inmemorystore provides a thread-safe, in-memory implementation
// of the graphstore.Store interface. It is suitable for development, testing,
// or any scenario where compiled graphs do not need to outlive the process.
//
// # Characteristics
//
//   - **Ephemeral:** Archives live as long as the process
//   - **Thread-Safe:** Uses sync.Map; archives are written once and read often
//   - **Isolated:** Archives are stored encoded, so callers never share memory
//     with the store
package inmemorystore
