// Package notify defines the broker notification port used to announce
// safety events, plus its adapters.
//
// MQTTChannel publishes through an Eclipse Paho client; SimChannel is an
// in-process stand-in that reproduces broker timing for bench use and tests.
// Both enrich every payload with the timestamp and unit/sector identity
// before serialization.
package notify
