// Package adapter converts raw grid payloads into canonical nodes and links.
//
// Payloads arrive from the computation backend, from case files on disk and
// from the built-in sample. They disagree on field names (vm versus voltage,
// fbus versus source), on number encoding and on whether coordinates are
// present. Convert accepts all of them and produces the same canonical
// entities, so the topology store never sees a wire format.
//
// # Type Inference
//
// A node's type is taken from, in order:
//
//  1. an explicit type field
//  2. a bus_type code (3 slack, 2 pv, 1 load)
//  3. the sign of its active power: positive with every pv input present is
//     pv, positive otherwise is generator, anything else is load
//
// # Coordinates
//
// Nodes missing a coordinate get one synthesized. The 9 and 14 bus cases use
// a fixed hand-authored table; everything else lands on a circle around the
// default viewport center, indexed by the numeric suffix of the node id.
// Synthesis is deterministic: the same payload always yields the same layout
// seed.
package adapter
