// Package state implements the operational state machine for a GVA unit.
//
// The machine validates every transition against a fixed adjacency table and
// keeps an append-only history of committed transitions for audit. Valid
// states form a single directed cycle: NORMAL → EMERGENCY_STOP → RESTORING →
// NORMAL. There are no shortcuts; recovery from an emergency stop must pass
// through RESTORING.
package state
