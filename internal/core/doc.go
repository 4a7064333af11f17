// Package core provides the domain model for worklist-driven artifact deployment
// and the pure stages that operate on it.
//
// # Pipeline
//
// A run moves through the following stages, each defined in this package:
//
//  1. LoadWorklist: raw lines become canonical WorklistEntries. This is the only
//     stage allowed to fail the run (relative or missing paths).
//  2. Registry.Transform: a canonical source path becomes a destination path
//     plus its owning Repository (or none).
//  3. Group: entries collapse onto DestinationGroups keyed by destination.
//  4. Registry.Classify: groups are partitioned into per-repository buckets and
//     an unmapped bucket.
//
// Every stage after loading is total: input is never dropped, only partitioned.
//
// # Determinism
//
// Groups are ordered by destination and their sources lexicographically, so the
// same worklist and configuration always yield byte-identical reports.
package core
