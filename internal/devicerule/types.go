package devicerule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/iot-bridge/internal/infrastructure/config"
)

// ErrInvalidRule is returned when a rule definition cannot be scheduled.
var ErrInvalidRule = errors.New("devicerule: invalid rule")

// Action is one command sent to the device when a rule fires.
type Action struct {
	ServiceID   string         `json:"service_id"`
	CommandName string         `json:"command_name"`
	Paras       map[string]any `json:"paras,omitempty"`
}

// Job is a scheduled rule for one device.
type Job struct {
	RuleID   string
	DeviceID string
	Interval time.Duration
	// Window restricts firing to a daily time range. Nil means always.
	Window  *TimeRange
	Actions []Action
}

// Executor performs a rule's actions against a device.
type Executor interface {
	ExecuteRuleActions(ctx context.Context, deviceID string, actions []Action) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, deviceID string, actions []Action) error

// ExecuteRuleActions calls f.
func (f ExecutorFunc) ExecuteRuleActions(ctx context.Context, deviceID string, actions []Action) error {
	return f(ctx, deviceID, actions)
}

// FromConfig converts configured rules into jobs.
func FromConfig(rules []config.RuleConfig) ([]Job, error) {
	jobs := make([]Job, 0, len(rules))
	for _, rc := range rules {
		job := Job{
			RuleID:   rc.ID,
			DeviceID: rc.DeviceID,
			Interval: rc.Interval,
			Actions:  make([]Action, 0, len(rc.Actions)),
		}
		if rc.Window != nil {
			tr, err := ParseTimeRange(rc.Window.Start, rc.Window.End, rc.Window.Days)
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", rc.ID, err)
			}
			job.Window = &tr
		}
		for _, a := range rc.Actions {
			job.Actions = append(job.Actions, Action{
				ServiceID:   a.ServiceID,
				CommandName: a.CommandName,
				Paras:       a.Paras,
			})
		}
		if err := job.validate(); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (j Job) validate() error {
	switch {
	case j.RuleID == "":
		return fmt.Errorf("%w: missing rule id", ErrInvalidRule)
	case j.DeviceID == "":
		return fmt.Errorf("%w: rule %q has no device id", ErrInvalidRule, j.RuleID)
	case j.Interval <= 0:
		return fmt.Errorf("%w: rule %q interval must be positive", ErrInvalidRule, j.RuleID)
	case len(j.Actions) == 0:
		return fmt.Errorf("%w: rule %q has no actions", ErrInvalidRule, j.RuleID)
	}
	return nil
}
