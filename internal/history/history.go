// Package history records every rate sample as a time series point.
package history

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/yugeshweb/AquaFlow/internal/logic"
)

// Measurement is the InfluxDB measurement rate samples are written to.
const Measurement = "flow_rate"

// Recorder stores rate samples.
type Recorder interface {
	Record(ctx context.Context, sample logic.RateSample) error
	Close() error
}

// InfluxConfig selects the InfluxDB bucket samples are written to.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
	// Timeout bounds a single write. Zero keeps the client default.
	Timeout time.Duration
}

// Influx writes samples to InfluxDB 2.x, one point per sample.
type Influx struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewInflux creates an InfluxDB recorder. No connection is made until the first write.
func NewInflux(cfg InfluxConfig) (*Influx, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx config incomplete: url, org and bucket are required")
	}

	opts := influxdb2.DefaultOptions()
	if cfg.Timeout > 0 {
		secs := uint(cfg.Timeout.Seconds())
		if secs == 0 {
			secs = 1
		}
		opts.SetHTTPRequestTimeout(secs)
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	return &Influx{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}, nil
}

// Record writes one sample.
func (r *Influx) Record(ctx context.Context, sample logic.RateSample) error {
	tags := map[string]string{
		"channel": sample.Channel.String(),
	}
	fields := map[string]interface{}{
		"rate":       sample.Rate,
		"count":      int64(sample.Count),
		"elapsed_ms": sample.Elapsed.Milliseconds(),
	}

	at := sample.At
	if at.IsZero() {
		at = time.Now()
	}

	point := influxdb2.NewPoint(Measurement, tags, fields, at)
	if err := r.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("write %s sample: %w", sample.Channel, err)
	}
	return nil
}

// Close releases the client.
func (r *Influx) Close() error {
	r.client.Close()
	return nil
}

// Noop discards samples. It is used when no history backend is configured.
type Noop struct{}

func (Noop) Record(context.Context, logic.RateSample) error { return nil }
func (Noop) Close() error                                   { return nil }
