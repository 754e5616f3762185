// Package resolver builds the per-phase actor graph. Edges run from the
// producer of a message kind to every consumer of that kind in the same phase,
// and the resolver tracks which actors are ready for the engine to dispatch.
package resolver
