// Package deviceclient implements the device side of the platform protocol.
//
// A Client binds one device Identity to one Transport and offers:
//   - property reports, raw uplink messages and events
//   - command, property-set and property-get handling through listeners
//   - shadow requests correlated to their responses by request id
//   - bridge login for devices connected through a bridge
//
// Inbound topics are parsed by ParseTopic and routed by kind. Responses to
// requests the client originated are matched by the Correlator on the
// transport's delivery goroutine; listener callbacks are queued and run one
// at a time on the client's own goroutine, so a listener may block or call
// back into the client without stalling delivery.
//
// # Usage
//
//	c, err := deviceclient.New(deviceclient.Identity{DeviceID: id, Secret: secret},
//	    deviceclient.Options{ServerURI: "ssl://iot.example.com:8883", TrustAnchor: caFile})
//	if err != nil {
//	    return err
//	}
//	c.SetCommandListener(deviceclient.CommandListenerFunc(
//	    func(requestID, serviceID, name string, paras map[string]any) {
//	        _ = c.RespondCommand(requestID, deviceclient.CommandResponse{ResultCode: 0})
//	    }))
//	if err := c.Connect(ctx); err != nil {
//	    return err
//	}
//	defer c.Close()
package deviceclient
