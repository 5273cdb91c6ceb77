package bridge

import "time"

// PointWriter is the time-series sink used by TelemetryObserver.
// *influxdb.Client satisfies it.
type PointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, ts time.Time)
}

// Telemetry measurements.
const (
	measurementSessions = "bridge_sessions"
	measurementTraffic  = "bridge_traffic"
)

// TelemetryObserver returns an Observer that records session lifecycle
// events and frame traffic as time-series points.
//
// Lifecycle events go to "bridge_sessions" tagged by event and device;
// uplink and downlink frames go to "bridge_traffic" tagged by direction.
func TelemetryObserver(w PointWriter) Observer {
	return ObserverFunc(func(ev Event) {
		tags := map[string]string{"node_id": ev.Session.NodeID}
		if ev.Session.DeviceID != "" {
			tags["device_id"] = ev.Session.DeviceID
		}

		fields := map[string]any{}
		if ev.Error != "" {
			fields["error"] = ev.Error
		}

		measurement := measurementSessions
		switch ev.Type {
		case EventUplink, EventDownlink:
			measurement = measurementTraffic
			tags["direction"] = string(ev.Type)
			fields["bytes"] = ev.Bytes
		default:
			tags["event"] = string(ev.Type)
			fields["count"] = 1
		}

		ts := ev.Time
		if ts.IsZero() {
			ts = time.Now()
		}
		w.WritePointWithTime(measurement, tags, fields, ts)
	})
}
