// Package influxdb writes bridge telemetry to InfluxDB v2.
//
// It wraps influxdb-client-go with connection checks, batched non-blocking
// writes and a health probe. The bridge feeds it session and traffic points
// through bridge.TelemetryObserver:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	registry := bridge.NewRegistry(ids, factory,
//	    bridge.WithObserver(bridge.TelemetryObserver(client)))
//
// Write errors are asynchronous and reported through SetOnError.
package influxdb
