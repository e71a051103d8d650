// Package layout runs the force-directed simulation that positions nodes.
//
// The engine works on a topology.View: the live bodies of the store's nodes
// and one spring per link. Each Tick applies link springs, many-body charge,
// collision separation and centering, then integrates velocities with decay.
// Alpha cools geometrically toward zero and the engine goes idle once it
// drops below AlphaMin. Force strengths come from a Profile chosen by the
// network's scale.
//
// Dragging pins a body at the pointer and holds alpha at DragAlphaTarget so
// neighbors keep moving; releasing unpins it and reheats to ReheatAlpha.
package layout
