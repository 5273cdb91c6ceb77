// Package devicerule runs scheduled device rules.
//
// A rule targets one device. On every interval tick the scheduler checks the
// rule's optional daily time window and, when the current time falls inside
// it, hands the rule's actions to an Executor. The bridge registry is the
// production Executor: it writes each action to the device's external
// connection as a command frame.
//
// Failures are logged and never stop the schedule; the next tick tries again.
//
//	jobs, err := devicerule.FromConfig(cfg.Rules)
//	s := devicerule.NewScheduler(registry, jobs, logger)
//	s.Start(ctx)
//	defer s.Stop()
package devicerule
