// Package config loads and validates the controller configuration.
//
// Resolution order: baseline defaults, then an optional gvc.yaml file, then
// GVC_* environment variables. The settle delays model the actuation and
// settling latencies of the physical unit and may be shortened for bench
// setups.
package config
