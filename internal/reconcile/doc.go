// Package reconcile classifies camera-derived detections against an
// authoritative ground-truth map.
//
// Responsibilities: bidirectional nearest-neighbour matching between the
// two coordinate lists, asymmetric threshold policy, and the classified
// result set (confirmed / novel / absent).
//
// Every call is independent and side-effect free; the package keeps no
// state between invocations.
package reconcile
