// Package cachestate holds the per-version record of game/offline cache status.
// The Store is the single source of truth shared by the progress listener and
// the command dispatcher: worker progress is folded in through Merge, command
// results through ApplyOptimistic, and both replace one (version, side) slot
// wholesale. There are no sequence numbers, so the last write wins.
package cachestate
