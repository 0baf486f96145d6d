// Package authapi talks to the authentication service: login, signup,
// password reset and token renewal. Renewal is available over HTTP and gRPC
// behind the Renewer interface; each call is exactly one round trip.
package authapi
