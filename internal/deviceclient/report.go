package deviceclient

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// sdkVersion is reported in the device info event.
const sdkVersion = "iotbridge-go-1.0"

// ReportProperties publishes a property report. It does not wait for any
// platform acknowledgment.
func (c *Client) ReportProperties(services []ServiceProperty) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.publishJSON(c.topics.PropertiesReport(), PropertyReport{Services: services})
}

// ReportDeviceMessage publishes an opaque uplink message.
func (c *Client) ReportDeviceMessage(payload []byte) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.publish(c.topics.MessagesUp(), payload)
}

// ReportEvent publishes one event to events/up.
func (c *Client) ReportEvent(ev Event) error {
	if err := c.ready(); err != nil {
		return err
	}
	if ev.EventTime == "" {
		ev.EventTime = EventTime(c.now())
	}
	return c.publishJSON(c.topics.EventsUp(), eventReport{Services: []Event{ev}})
}

// ReportDeviceInfo publishes the device's software and firmware versions.
func (c *Client) ReportDeviceInfo(swVersion, fwVersion string) error {
	return c.ReportEvent(Event{
		ServiceID: "$sdk_info",
		EventType: "sdk_info_report",
		Paras: map[string]any{
			"device_sdk_version": sdkVersion,
			"sw_version":         swVersion,
			"fw_version":         fwVersion,
		},
	})
}

// RespondCommand answers a platform command.
//
// A second response for the same requestID returns ErrDuplicateResponse and
// publishes nothing. A failed publish does not count as a response, so the
// caller may retry it.
func (c *Client) RespondCommand(requestID string, rsp CommandResponse) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.markResponded(requestID); err != nil {
		return err
	}

	if err := c.publishJSON(c.topics.CommandResponse(requestID), rsp); err != nil {
		c.unmarkResponded(requestID)
		return err
	}
	return nil
}

func (c *Client) markResponded(requestID string) error {
	now := c.now()

	c.respondedMu.Lock()
	defer c.respondedMu.Unlock()

	for id, at := range c.responded {
		if now.Sub(at) > c.opts.ResponseMemory {
			delete(c.responded, id)
		}
	}

	if _, dup := c.responded[requestID]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateResponse, requestID)
	}
	c.responded[requestID] = now
	return nil
}

func (c *Client) unmarkResponded(requestID string) {
	c.respondedMu.Lock()
	delete(c.responded, requestID)
	c.respondedMu.Unlock()
}

// RespondPropertiesSet answers a property set request.
func (c *Client) RespondPropertiesSet(requestID string, result IotResult) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.publishJSON(c.topics.PropertiesSetResponse(requestID), result)
}

// RespondPropertiesGet answers a property get request.
func (c *Client) RespondPropertiesGet(requestID string, services []ServiceProperty) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.publishJSON(c.topics.PropertiesGetResponse(requestID), PropertyReport{Services: services})
}

// ShadowFuture resolves to the platform's shadow response.
type ShadowFuture struct {
	f *Future
}

// RequestID returns the id the response will be correlated by.
func (s *ShadowFuture) RequestID() string { return s.f.ID() }

// Await waits for the shadow. It fails with ErrTimeout when the platform
// does not answer within the request timeout and ErrCancelled when the
// client closes or ctx ends.
func (s *ShadowFuture) Await(ctx context.Context) (*ShadowResponse, error) {
	v, err := s.f.Await(ctx)
	if err != nil {
		return nil, err
	}
	shadow, ok := v.(*ShadowResponse)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected shadow result %T", ErrDecode, v)
	}
	return shadow, nil
}

// RequestShadow asks the platform for the device shadow. An empty serviceID
// requests every service.
func (c *Client) RequestShadow(serviceID string) (*ShadowFuture, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	requestID := c.correlator.NewRequestID()
	f, err := c.correlator.Register(requestID)
	if err != nil {
		return nil, err
	}

	req := ShadowRequest{DeviceID: c.identity.DeviceID, ServiceID: serviceID}
	if err := c.publishJSON(c.topics.ShadowGet(requestID), req); err != nil {
		c.correlator.Cancel(requestID, err)
		// Drain the sink so the entry leaves no trace.
		<-f.Done()
		return nil, err
	}

	return &ShadowFuture{f: f}, nil
}

// GetShadow is RequestShadow followed by Await.
func (c *Client) GetShadow(ctx context.Context, serviceID string) (*ShadowResponse, error) {
	future, err := c.RequestShadow(serviceID)
	if err != nil {
		return nil, err
	}
	return future.Await(ctx)
}

// IsTimeout reports whether err means a correlated request expired.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// RequestTimeout returns the deadline applied to correlated requests.
func (c *Client) RequestTimeout() time.Duration {
	return c.correlator.timeout
}
