// Package api exposes the HTTP control surface of the safety controller:
// the operator's trigger and reset actions, read-side status and history,
// the SSE event stream, health and metrics.
package api
