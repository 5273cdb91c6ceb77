// Package identity maps the node ids external devices present to the
// platform identities the bridge logs them in with.
//
// Identities live in SQLite (the device_identities table), are cached in
// memory by Registry, and can be imported from a YAML seed file at start-up.
package identity
