// Package events distributes safety events to SSE subscribers.
//
// The hub keeps a ring buffer of recent events with monotonic IDs so a
// reconnecting client can resume from its Last-Event-ID header. Event types:
// emergencyTriggered, stateChanged, systemRestored, fault.
package events
