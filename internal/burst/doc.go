// Package burst detects lightning bursts and aggregates them per storm and per
// basin/category group.
//
// The flow is:
//
//	observations → DetectEntities → SummarizeEntities → CalculateGroupThresholds
//	             → ApplyGroupThresholds → FilterEffective → NewGroupSummary/MergeVariant
//
// Every function returns new slices; caller input is never modified.
// Grouping is explicit: rows are partitioned into a map keyed by storm (and
// optionally sub-partition), each partition is processed on its own, and the
// result is reassembled in (storm, time) order.
package burst
