// Package repository defines the data access interfaces for gridscope.
//
// Only calculation history is persisted. The live topology is held in
// memory by the topology store and is never written here.
//
// # History
//
// Every power-flow run the session completes is recorded as a Run: the case
// label, solver method, whether it converged, the node and link counts at
// submission time, the returned statistics and any error message. Runs are
// listed newest first.
//
// # SQLite Implementation
//
// The sqlite subpackage implements HistoryRepository on modernc.org/sqlite
// with WAL mode. The schema is created on open. Tests use in-memory
// databases.
package repository
