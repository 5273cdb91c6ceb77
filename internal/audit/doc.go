// Package audit records operator actions taken through the admin API
// (logins, dropped sessions, identity changes) in the audit_log table.
package audit
