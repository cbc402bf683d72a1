// Package taskgraph holds a team's tasks and the blocking relation between
// them.
//
// A [Graph] is an in-memory, mutex-guarded set of tasks kept in insertion
// order. Edges are stored on both endpoints: when A blocks B, B's ID is in
// A.Blocks and A's ID is in B.BlockedBy, and every mutation updates both
// sides together. AddBlockingEdge refuses any edge that would close a
// cycle, so a graph built through the API is always acyclic; DetectCycles
// exists for graphs loaded from damaged or hand-edited storage.
//
// Status changes never touch edges. A completed blocker still appears in
// its dependents' BlockedBy until RemoveBlockingEdge is called; Ready
// reports which pending tasks have only completed blockers.
//
// Persistence goes through a [Store]. [JSONStore] keeps one graph.json per
// team, written atomically under a file lock. [SQLiteStore] keeps every
// team in one SQLite database and saves each update in a single
// transaction. Store.Update is the read-modify-write entry point used by
// callers that share a workspace with other processes.
package taskgraph
