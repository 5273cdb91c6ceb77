package deviceclient

import (
	"encoding/json"
	"fmt"
)

// Inbound handlers run on the transport's delivery goroutine. They decode,
// resolve correlated requests directly, and queue listener calls on the
// dispatcher. A malformed payload is logged and dropped.

func (c *Client) dropMalformed(t Topic, msg RawMessage, err error) {
	c.decodeErrors.Add(1)
	c.logger.Warn("dropping malformed payload",
		"device_id", c.identity.DeviceID,
		"kind", t.Kind.String(),
		"topic", msg.Topic,
		"error", fmt.Errorf("%w: %w", ErrDecode, err),
	)
}

func (c *Client) handleCommand(t Topic, msg RawMessage) {
	var cmd CommandRequest
	if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
		c.dropMalformed(t, msg, err)
		return
	}
	if t.RequestID != "" {
		cmd.RequestID = t.RequestID
	}
	if cmd.RequestID == "" {
		c.dropMalformed(t, msg, fmt.Errorf("command %q has no request id", cmd.CommandName))
		return
	}

	c.logger.Debug("command received",
		"device_id", c.identity.DeviceID,
		"request_id", cmd.RequestID,
		"service_id", cmd.ServiceID,
		"command_name", cmd.CommandName,
	)

	if l := c.commandListener(); l != nil {
		c.dispatch.submit(func() { l.OnCommand(cmd.RequestID, cmd.ServiceID, cmd.CommandName, cmd.Paras) })
		return
	}
	c.dispatch.submit(func() { c.defaults.OnCommand(cmd) })
}

func (c *Client) handlePropertySet(t Topic, msg RawMessage) {
	var set PropertySet
	if err := json.Unmarshal(msg.Payload, &set); err != nil {
		c.dropMalformed(t, msg, err)
		return
	}

	deviceID := set.DeviceID
	if deviceID == "" {
		deviceID = t.DeviceID
	}

	if l := c.propertySetListener(); l != nil {
		for _, svc := range set.Services {
			c.dispatch.submit(func() { l.OnPropertiesSet(t.RequestID, deviceID, svc.ServiceID, svc.Properties) })
		}
		return
	}
	c.dispatch.submit(func() { c.defaults.OnPropertiesSet(t.RequestID, set) })
}

func (c *Client) handlePropertyGet(t Topic, msg RawMessage) {
	var get PropertyGet
	if err := json.Unmarshal(msg.Payload, &get); err != nil {
		c.dropMalformed(t, msg, err)
		return
	}
	if get.DeviceID == "" {
		get.DeviceID = t.DeviceID
	}

	if l := c.propertyGetListener(); l != nil {
		c.dispatch.submit(func() { l.OnPropertiesGet(t.RequestID, get) })
		return
	}
	c.dispatch.submit(func() { c.defaults.OnPropertiesGet(t.RequestID, get) })
}

// handleShadow resolves a pending RequestShadow first. Unclaimed responses
// for this device go to the shadow listener, everything else to the default handler.
func (c *Client) handleShadow(t Topic, msg RawMessage) {
	var shadow ShadowResponse
	if err := json.Unmarshal(msg.Payload, &shadow); err != nil {
		c.dropMalformed(t, msg, err)
		return
	}

	if c.correlator.Resolve(t.RequestID, &shadow) {
		return
	}

	ownDevice := shadow.DeviceID == "" || shadow.DeviceID == c.identity.DeviceID
	if l := c.shadowListener(); l != nil && ownDevice {
		c.dispatch.submit(func() { l.OnShadow(t.RequestID, shadow.Shadow) })
		return
	}
	c.dispatch.submit(func() { c.defaults.OnShadow(t.RequestID, shadow) })
}

func (c *Client) handleMessageDown(_ Topic, msg RawMessage) {
	payload := append([]byte(nil), msg.Payload...)

	if l := c.messageListener(); l != nil {
		c.dispatch.submit(func() { l.OnDeviceMessage(payload) })
		return
	}
	c.dispatch.submit(func() { c.defaults.OnDeviceMessage(payload) })
}

// handleLogin notifies the login listener when one is set and otherwise
// completes the login request Connect is waiting on.
func (c *Client) handleLogin(t Topic, msg RawMessage) {
	var rsp loginResponse
	if err := json.Unmarshal(msg.Payload, &rsp); err != nil {
		c.dropMalformed(t, msg, err)
		return
	}
	if rsp.ResultCode == nil {
		c.dropMalformed(t, msg, fmt.Errorf("login response has no result_code"))
		return
	}
	code := *rsp.ResultCode

	if l := c.loginListener(); l != nil {
		c.dispatch.submit(func() { l.OnLogin(t.DeviceID, t.RequestID, code) })
		return
	}
	if !c.correlator.Resolve(t.RequestID, code) {
		c.logger.Debug("login response for unknown request", "device_id", t.DeviceID, "request_id", t.RequestID)
	}
}

func (c *Client) handleLogout(t Topic, _ RawMessage) {
	c.logger.Info("logout acknowledged", "device_id", t.DeviceID, "request_id", t.RequestID)
}
