// Package cli provides the interactive tokenkeeper command-line client.
//
// It wires configuration, the persistent session store, the auth service
// client, the refresh coordinator, the session guard and the request
// pipeline, then runs a REPL. Typical flow: restore a persisted session or
// log in, call protected endpoints, and let the scheduler renew the token in
// the background.
//
// Key features:
//   - Login / Logout / Signup / password reset
//   - get <path> and rpc <method> against protected endpoints
//   - status, explicit refresh, and resume (also bound to SIGCONT)
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
