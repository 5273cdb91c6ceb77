package deviceclient

// PropertySetListener receives platform property writes, one call per service.
// The listener answers with Client.RespondPropertiesSet.
type PropertySetListener interface {
	OnPropertiesSet(requestID, deviceID, serviceID string, properties map[string]any)
}

// PropertyGetListener receives platform property reads.
// The listener answers with Client.RespondPropertiesGet.
type PropertyGetListener interface {
	OnPropertiesGet(requestID string, get PropertyGet)
}

// CommandListener receives platform commands.
// It must eventually call Client.RespondCommand exactly once per requestID.
type CommandListener interface {
	OnCommand(requestID, serviceID, commandName string, paras map[string]any)
}

// MessageListener receives opaque downlink messages.
type MessageListener interface {
	OnDeviceMessage(payload []byte)
}

// ShadowListener receives shadow responses that no pending request claimed.
type ShadowListener interface {
	OnShadow(requestID string, shadow []ShadowData)
}

// LoginListener receives bridge login results.
type LoginListener interface {
	OnLogin(deviceID, requestID string, resultCode int)
}

// PropertySetListenerFunc adapts a function to PropertySetListener.
type PropertySetListenerFunc func(requestID, deviceID, serviceID string, properties map[string]any)

// OnPropertiesSet calls f.
func (f PropertySetListenerFunc) OnPropertiesSet(requestID, deviceID, serviceID string, properties map[string]any) {
	f(requestID, deviceID, serviceID, properties)
}

// PropertyGetListenerFunc adapts a function to PropertyGetListener.
type PropertyGetListenerFunc func(requestID string, get PropertyGet)

// OnPropertiesGet calls f.
func (f PropertyGetListenerFunc) OnPropertiesGet(requestID string, get PropertyGet) {
	f(requestID, get)
}

// CommandListenerFunc adapts a function to CommandListener.
type CommandListenerFunc func(requestID, serviceID, commandName string, paras map[string]any)

// OnCommand calls f.
func (f CommandListenerFunc) OnCommand(requestID, serviceID, commandName string, paras map[string]any) {
	f(requestID, serviceID, commandName, paras)
}

// MessageListenerFunc adapts a function to MessageListener.
type MessageListenerFunc func(payload []byte)

// OnDeviceMessage calls f.
func (f MessageListenerFunc) OnDeviceMessage(payload []byte) { f(payload) }

// ShadowListenerFunc adapts a function to ShadowListener.
type ShadowListenerFunc func(requestID string, shadow []ShadowData)

// OnShadow calls f.
func (f ShadowListenerFunc) OnShadow(requestID string, shadow []ShadowData) { f(requestID, shadow) }

// LoginListenerFunc adapts a function to LoginListener.
type LoginListenerFunc func(deviceID, requestID string, resultCode int)

// OnLogin calls f.
func (f LoginListenerFunc) OnLogin(deviceID, requestID string, resultCode int) {
	f(deviceID, requestID, resultCode)
}

// DefaultHandler receives inbound traffic for which no listener is registered.
//
// Device-model style integrations implement it to map properties and
// commands onto their own service objects.
type DefaultHandler interface {
	OnPropertiesSet(requestID string, set PropertySet)
	OnPropertiesGet(requestID string, get PropertyGet)
	OnCommand(cmd CommandRequest)
	OnDeviceMessage(payload []byte)
	OnShadow(requestID string, shadow ShadowResponse)
}

// dropHandler is the DefaultHandler used when none is configured.
type dropHandler struct {
	logger Logger
}

func (h dropHandler) OnPropertiesSet(requestID string, set PropertySet) {
	h.logger.Warn("no property-set listener, dropping request", "request_id", requestID, "services", len(set.Services))
}

func (h dropHandler) OnPropertiesGet(requestID string, get PropertyGet) {
	h.logger.Warn("no property-get listener, dropping request", "request_id", requestID, "service_id", get.ServiceID)
}

func (h dropHandler) OnCommand(cmd CommandRequest) {
	h.logger.Warn("no command listener, dropping command",
		"request_id", cmd.RequestID,
		"service_id", cmd.ServiceID,
		"command_name", cmd.CommandName,
	)
}

func (h dropHandler) OnDeviceMessage(payload []byte) {
	h.logger.Debug("no message listener, dropping message", "bytes", len(payload))
}

func (h dropHandler) OnShadow(requestID string, shadow ShadowResponse) {
	h.logger.Debug("no shadow listener, dropping shadow", "request_id", requestID, "device_id", shadow.DeviceID)
}
