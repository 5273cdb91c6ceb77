// Package api provides the admin HTTP server for the IoT bridge.
//
// Routes:
//
//	GET    /healthz                         liveness and database health
//	GET    /metrics                         Prometheus exposition
//	POST   /api/v1/auth/login               operator login, returns a JWT
//	POST   /api/v1/auth/ws-ticket           single-use WebSocket ticket
//	GET    /api/v1/ws?ticket=...            live session events
//	GET    /api/v1/sessions                 active sessions
//	GET    /api/v1/sessions/{connID}        one session
//	DELETE /api/v1/sessions/{connID}        disconnect a device
//	GET    /api/v1/identities               provisioned identities, secrets redacted
//	GET    /api/v1/identities/{nodeID}      one identity
//	PUT    /api/v1/identities/{nodeID}      provision or replace an identity
//	DELETE /api/v1/identities/{nodeID}      remove an identity
//
// Everything under /api/v1 except login and the WebSocket upgrade requires a
// Bearer token. The server follows the usual lifecycle:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
