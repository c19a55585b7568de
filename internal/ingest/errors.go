package ingest

import "errors"

// Domain errors for the ingestion pipeline.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrProtocol is returned when an inbound frame cannot be decoded.
	ErrProtocol = errors.New("ingest: protocol error")

	// ErrSubscribeFailed is returned when the subscribe message cannot be
	// delivered after connecting.
	ErrSubscribeFailed = errors.New("ingest: subscribe failed")

	// ErrNoDevices is returned when device enumeration yields nothing to
	// subscribe to.
	ErrNoDevices = errors.New("ingest: no devices to subscribe")
)
