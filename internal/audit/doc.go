// Package audit implements the append-only action log for the safety
// controller.
//
// Every trigger and reset attempt is recorded with the acting operator,
// unit, outcome and latency. Entries are JSON lines flushed to disk on
// write so the trail survives a crash of the control process.
package audit
