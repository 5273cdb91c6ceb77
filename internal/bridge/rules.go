package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/iot-bridge/internal/devicerule"
)

// ruleCommand is the downlink frame for a rule action. It uses the same
// field names as platform command payloads.
type ruleCommand struct {
	RuleAction  bool           `json:"rule_action"`
	ServiceID   string         `json:"service_id,omitempty"`
	CommandName string         `json:"command_name"`
	Paras       map[string]any `json:"paras,omitempty"`
}

// ExecuteRuleActions writes each action to the device's connection as a
// command frame. It returns ErrSessionNotFound when the device has no
// session. Every action is attempted; failures are joined.
func (r *Registry) ExecuteRuleActions(ctx context.Context, deviceID string, actions []devicerule.Action) error {
	s, ok := r.SessionByDevice(deviceID)
	if !ok {
		return fmt.Errorf("%w: device %q", ErrSessionNotFound, deviceID)
	}

	var errs []error
	for _, a := range actions {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		frame, err := json.Marshal(ruleCommand{
			RuleAction:  true,
			ServiceID:   a.ServiceID,
			CommandName: a.CommandName,
			Paras:       a.Paras,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("encoding action %q: %w", a.CommandName, err))
			continue
		}
		if err := s.writeDownlink("rule", frame); err != nil {
			errs = append(errs, fmt.Errorf("action %q: %w", a.CommandName, err))
		}
	}
	return errors.Join(errs...)
}

var _ devicerule.Executor = (*Registry)(nil)
