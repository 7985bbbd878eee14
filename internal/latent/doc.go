// Package latent compiles and evaluates the small programs that compute
// latent trait properties.
//
// Programs are HCL expressions. They read graph variables through the `var`
// namespace (`var.speed * 2`) and may call the numeric helpers in Functions.
// A graph carries its programs as source text in a table indexed by the
// program number stored in each latent handle.
package latent
