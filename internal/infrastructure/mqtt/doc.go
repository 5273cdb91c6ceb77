// Package mqtt is the platform transport: one paho MQTT connection per device.
//
// This package manages:
//   - Device credentials (client id with hour stamp, HMAC-SHA256 password)
//   - TLS with a configurable trust anchor and optional client certificate
//   - CONNECT with classification of rejected credentials vs transport failure
//   - Publishing and subscription tracking with restore after reconnect
//   - Panic-safe delivery callbacks
//
// The first CONNECT is never retried, so a rejected device surfaces
// ErrAuthRejected to its caller. Once connected, paho reconnects with
// backoff and the client re-subscribes every tracked filter.
//
// # Usage
//
//	creds := mqtt.DeviceCredentials(deviceID, secret, time.Now())
//	tlsCfg, err := mqtt.TLSConfig(caFile, "", "")
//	c := mqtt.New(mqtt.Options{
//	    ServerURI: "ssl://iot.example.com:8883",
//	    ClientID:  creds.ClientID,
//	    Username:  creds.Username,
//	    Password:  creds.Password,
//	    TLS:       tlsCfg,
//	})
//	if err := c.Connect(ctx); errors.Is(err, mqtt.ErrAuthRejected) {
//	    // wrong secret
//	}
package mqtt
