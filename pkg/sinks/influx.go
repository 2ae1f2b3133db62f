package sinks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/kabili207/mesh-web-client/pkg/config"
	"github.com/kabili207/mesh-web-client/pkg/connection"
	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
)

// InfluxTelemetry writes one point per telemetry report.
type InfluxTelemetry struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      *slog.Logger
	now      func() time.Time
}

func NewInfluxTelemetry(cfg config.InfluxSettings, logger *slog.Logger) *InfluxTelemetry {
	if logger == nil {
		logger = slog.Default()
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxTelemetry{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.With("component", "influx"),
		now:      time.Now,
	}
}

func (s *InfluxTelemetry) HandleEvent(ctx context.Context, ev connection.Event) error {
	if ev.Kind != connection.EventTelemetry || ev.Telemetry == nil {
		return nil
	}
	point := telemetryPoint(ev, s.now())
	if point == nil {
		return nil
	}
	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("write telemetry: %w", err)
	}
	return nil
}

func (s *InfluxTelemetry) Close() {
	s.client.Close()
}

func telemetryPoint(ev connection.Event, now time.Time) *write.Point {
	t := ev.Telemetry.Data
	ts := now
	if t.GetTime() != 0 {
		ts = time.Unix(int64(t.GetTime()), 0)
	} else if rx := ev.Telemetry.Packet.GetRxTime(); rx != 0 {
		ts = time.Unix(int64(rx), 0)
	}

	tags := map[string]string{
		"owner": ev.Owner.String(),
		"node":  meshtastic.NodeID(ev.Telemetry.Packet.GetFrom()).String(),
	}

	switch {
	case t.GetDeviceMetrics() != nil:
		m := t.GetDeviceMetrics()
		return influxdb2.NewPoint("device_metrics", tags, map[string]any{
			"battery_level":       int64(m.GetBatteryLevel()),
			"voltage":             float64(m.GetVoltage()),
			"channel_utilization": float64(m.GetChannelUtilization()),
			"air_util_tx":         float64(m.GetAirUtilTx()),
			"uptime_seconds":      int64(m.GetUptimeSeconds()),
		}, ts)
	case t.GetEnvironmentMetrics() != nil:
		m := t.GetEnvironmentMetrics()
		return influxdb2.NewPoint("environment_metrics", tags, map[string]any{
			"temperature":         float64(m.GetTemperature()),
			"relative_humidity":   float64(m.GetRelativeHumidity()),
			"barometric_pressure": float64(m.GetBarometricPressure()),
		}, ts)
	}
	return nil
}
