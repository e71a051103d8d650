// Package domain defines the core types for the gridscope topology editor.
//
// # Core Types
//
// Node represents a bus with an electrical role (slack, pv, generator, load)
// and four opaque electrical attributes. Each node owns a Body holding its
// layout position, velocity and optional pin.
//
// Link represents a branch between two nodes. Its endpoints are tagged
// references: Unresolved (an id only) until the topology store binds them to
// live Node instances.
//
// Payload is the canonical wire shape shared by the computation backend,
// the codecs and any renderer.
//
// # Field Table
//
// Each node type has a fixed set of operator-specified fields; the others are
// produced by the power-flow computation. Editable and InputFields expose the
// table to the edit commit path and to the adapter's type inference.
//
// # Errors
//
// InvalidShapeError, DuplicateLinkError, SelfLoopError,
// ReferenceResolutionError and NetworkError form the error taxonomy used
// across the adapter, store, interaction and backend layers.
package domain
