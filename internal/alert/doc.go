// Package alert implements per-client over-current protection.
//
// Connected clients register a current threshold in amps. Every live
// current reading is evaluated against the registry; a breach sends a
// targeted alert to the registering client and cuts the device's power
// with a single auto-shutdown command. Evaluation order across clients
// is deliberately unspecified.
package alert
