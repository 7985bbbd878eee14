// Package basic registers the sample traits compiled into the traitgraph
// binary: Clip plays a timed source, Blend mixes two child nodes by a latent
// weight, and Mirror is an additive flag layered on top of either.
//
// Importing the package is enough; every trait registers itself with
// trait.AutoRegister.
package basic
