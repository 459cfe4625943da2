// Package properties implements the hierarchical configuration tree every
// other component of a run reads from and writes to.
//
// Nodes are addressed by a Path of segments. Groups of members, e.g. hosts or
// replication services, may declare a reserved `defaults` member; a lookup of
// [group, member, key] that is absent falls back to [group, defaults, key].
//
// The store persists to a flat, ordered file of `dotted.path=value` lines.
package properties
