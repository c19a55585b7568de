package ingest

import (
	"context"
	"time"

	"github.com/voltguard/voltguard-core/internal/device"
)

// RestClient is the REST surface the refresh poller needs.
// Satisfied by *platform.Client.
type RestClient interface {
	VerifyToken(ctx context.Context) error
	FetchTelemetry(ctx context.Context, deviceID string, keys []string) (map[string]string, error)
	FetchPowerAttribute(ctx context.Context, deviceID string) (string, error)
}

// Refresher periodically sweeps the REST API for a full state snapshot of
// every managed device.
//
// The socket stream only carries changes; a device that was updated while
// the socket was down would stay stale until its next report. The sweep
// closes that gap: verify the credential, enumerate, pull the latest
// telemetry and power attribute per device into the store, and publish
// the refreshed snapshots.
type Refresher struct {
	client    RestClient
	enumerate Enumerator
	store     *device.Store
	publisher Publisher
	keys      []string
	interval  time.Duration
	logger    Logger
}

// NewRefresher creates the periodic full-refresh poller.
func NewRefresher(
	client RestClient,
	enumerate Enumerator,
	store *device.Store,
	publisher Publisher,
	keys []string,
	interval time.Duration,
	logger Logger,
) *Refresher {
	if logger == nil {
		logger = noopLogger{}
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Refresher{
		client:    client,
		enumerate: enumerate,
		store:     store,
		publisher: publisher,
		keys:      keys,
		interval:  interval,
		logger:    logger,
	}
}

// Run sweeps until the context is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	r.logger.Info("refresh poller started", "interval", r.interval.String())
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresh poller stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep performs one full refresh cycle. Per-device failures are logged
// and skipped; the cycle always visits every device it can.
func (r *Refresher) Sweep(ctx context.Context) {
	if err := r.client.VerifyToken(ctx); err != nil {
		r.logger.Warn("refresh skipped, credential invalid", "error", err)
		return
	}

	ids, err := r.enumerate(ctx)
	if err != nil {
		r.logger.Warn("refresh enumeration failed", "error", err)
		return
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}

		values, err := r.client.FetchTelemetry(ctx, id, r.keys)
		if err != nil {
			r.logger.Warn("telemetry fetch failed", "device_id", id, "error", err)
			continue
		}
		rec := r.store.UpsertTelemetry(id, values)

		if power, err := r.client.FetchPowerAttribute(ctx, id); err != nil {
			r.logger.Warn("power attribute fetch failed", "device_id", id, "error", err)
		} else if power != "" {
			rec, _ = r.store.UpsertAttribute(id, device.AttrPower, power)
		}

		if r.publisher != nil {
			r.publisher.Broadcast("device.state", rec)
		}
	}
}
