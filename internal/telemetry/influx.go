package telemetry

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/tanudai/Nuclear-SCADA/internal/engine"
)

// Measurement names.
const (
	MeasurementPlant = "plant"
	MeasurementAlert = "alert"
)

// PointWriter is satisfied by api.WriteAPIBlocking.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxSink writes samples and alerts as InfluxDB points.
type InfluxSink struct {
	w      PointWriter
	client influxdb2.Client
}

// NewInfluxSink wraps an existing writer.
func NewInfluxSink(w PointWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// InfluxOptions configures DialInflux.
type InfluxOptions struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// DialInflux creates a client with a blocking writer for org and bucket.
// The client connects lazily on the first write.
func DialInflux(opts InfluxOptions) *InfluxSink {
	client := influxdb2.NewClient(opts.URL, opts.Token)
	return &InfluxSink{
		w:      client.WriteAPIBlocking(opts.Org, opts.Bucket),
		client: client,
	}
}

// Observe implements engine.Observer.
func (s *InfluxSink) Observe(ctx context.Context, r engine.Report) error {
	points := Points(r)
	if len(points) == 0 {
		return nil
	}
	if err := s.w.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write %d points: %w", len(points), err)
	}
	return nil
}

// Close releases a client created by DialInflux.
func (s *InfluxSink) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// Points converts a report to points: one plant point per sample and one
// alert point per alert.
func Points(r engine.Report) []*write.Point {
	var out []*write.Point
	if r.Sample != nil {
		out = append(out, SamplePoint(r.RunID, *r.Sample))
	}
	for _, a := range r.Alerts {
		out = append(out, AlertPoint(r.RunID, r.Tick, a))
	}
	return out
}

// SamplePoint builds the plant measurement for one history sample.
func SamplePoint(runID string, s engine.HistorySample) *write.Point {
	st := s.State
	return influxdb2.NewPoint(MeasurementPlant,
		map[string]string{
			"run_id":           runID,
			"overall_status":   st.Status.String(),
			"grid_sync_status": st.GridSync.String(),
			"eccs_status":      st.ECCS.String(),
		},
		map[string]any{
			"tick":                 s.Tick,
			"reactor_temperature":  st.Temperature,
			"coolant_pressure":     st.Pressure,
			"turbine_rpm":          st.TurbineSpeed,
			"power_output":         st.PowerOutput,
			"radiation_level":      st.Radiation,
			"coolant_flow":         st.CoolantFlow,
			"control_rod_position": st.RodPosition,
			"grid_demand":          st.GridDemand,
			"coolant_pump_a":       st.PumpA,
			"coolant_pump_b":       st.PumpB,
			"containment_pressure": st.ContainmentPressure,
			"containment_temp":     st.ContainmentTemp,
			"eccs_water_level":     st.ECCSReservoir,
		},
		s.At,
	)
}

// AlertPoint builds the alert measurement for one alert.
func AlertPoint(runID string, tick int64, a engine.Alert) *write.Point {
	return influxdb2.NewPoint(MeasurementAlert,
		map[string]string{
			"run_id":   runID,
			"severity": a.Severity.String(),
		},
		map[string]any{
			"id":      a.ID,
			"tick":    tick,
			"message": a.Message,
		},
		a.At,
	)
}
