// Package sequence implements the emergency stop sequencer, the central use
// case of the safety controller.
//
// Trigger drives the three-step stop sequence in strict order: power cut via
// the HAL, domain state transition, broker notification. Reset drives the
// operator-initiated recovery. A busy guard makes concurrent triggers
// impossible; it is set before the first step and only ever cleared by a
// successful Reset, so the unit stays locked after any real emergency stop
// until an operator intervenes.
package sequence
