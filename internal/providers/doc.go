// Package providers defines the shared payload types and failure taxonomy
// for the external data providers the engine reconciles: the movie catalog,
// video search, the encyclopedia, the music track catalog, and ratings.
// Concrete HTTP clients live in subpackages; consumers depend on small
// interfaces declared at the call site.
package providers
