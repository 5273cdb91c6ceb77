// Package auth authenticates bridge operators for the admin API.
//
// Operators are declared in configuration with an Argon2id password hash
// and a role. A successful login yields a short-lived HS256 JWT that the
// admin API validates by signature alone. Roles map to a static permission
// set: viewers read sessions and identities, admins also change them.
package auth
