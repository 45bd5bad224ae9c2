// Package hal defines the power control port consumed by the emergency
// sequencer, plus a simulated relay driver.
//
// In production the driver talks to the motor power controller over GPIO,
// CANbus or Modbus. The simulated driver reproduces the actuation timing of
// the electromechanical power relay without hardware attached.
package hal
