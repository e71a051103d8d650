// Package handler implements the HTTP surface of the gridscope server.
//
// Every request that touches session state is funnelled through the
// session runner, so handlers never race the layout loop.
//
// # Endpoints
//
// Read-only views: GET /api/frame, /api/state and /api/topology.
//
// Interaction: POST /api/gestures applies one operator gesture. PUT
// /api/nodes/{id} and /api/links/{id} commit edited fields. POST
// /api/viewport reports the renderer size.
//
// Backend: POST /api/cases/load replaces the topology with a predefined
// case. POST /api/calculate runs a power-flow calculation and answers 409
// while another one is in flight.
//
// History, import and export: GET /api/history lists recorded calculation
// runs. POST /api/import/{format} and GET /api/export/{format} move the
// canonical payload in JSON or YAML.
//
// # Streams
//
// /events serves frames and notices as Server-Sent Events. /ws carries the
// same events over a websocket and accepts gestures in the other direction.
//
// # Response Format
//
// Success responses return JSON. Error responses return {error, details}
// with a status derived from the error kind: guard violations and in-flight
// calculations are 409, malformed input is 400, unknown ids are 404 and
// backend failures are 502.
package handler
