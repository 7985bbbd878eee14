// Package config defines the format-agnostic model of graph descriptions,
// along with the Loader interface for reading them from various sources.
//
// The `config.Model` is the single source of truth for the builder, which
// turns each Graph into a compiled archive. Concrete loaders, such as the one
// for HCL, are provided in separate packages.
package config
